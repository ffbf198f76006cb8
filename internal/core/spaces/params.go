package spaces

import (
	"github.com/spacelink/spacelink/internal/core"
)

// SearchParams describes a searchContent call.
type SearchParams struct {
	Query        string
	SpaceIDs     []string
	Mode         core.SearchMode
	StructureIDs []string
}

// WeblinkParams describes a saveWeblink call.
type WeblinkParams struct {
	SpaceID     string
	URL         string
	Title       string
	Description string
	Tags        []string
	Notes       string
}

// DailyNoteParams describes a saveToDailyNote call.
type DailyNoteParams struct {
	SpaceID     string
	Content     string
	NoTimestamp bool
}

type searchRequest struct {
	SearchTerm         string          `json:"searchTerm"`
	SpaceIDs           []string        `json:"spaceIds"`
	Mode               core.SearchMode `json:"mode"`
	FilterStructureIDs []string        `json:"filterStructureIds,omitempty"`
}

type weblinkRequest struct {
	SpaceID              string   `json:"spaceId"`
	URL                  string   `json:"url"`
	TitleOverwrite       string   `json:"titleOverwrite,omitempty"`
	DescriptionOverwrite string   `json:"descriptionOverwrite,omitempty"`
	Tags                 []string `json:"tags"`
	MdText               string   `json:"mdText,omitempty"`
}

type dailyNoteRequest struct {
	SpaceID     string `json:"spaceId"`
	MdText      string `json:"mdText"`
	NoTimeStamp bool   `json:"noTimeStamp"`
}

func (p SearchParams) request() searchRequest {
	mode := p.Mode
	if mode == "" {
		mode = core.DefaultSearchMode
	}
	spaceIDs := p.SpaceIDs
	if spaceIDs == nil {
		spaceIDs = []string{}
	}
	return searchRequest{
		SearchTerm:         p.Query,
		SpaceIDs:           spaceIDs,
		Mode:               mode,
		FilterStructureIDs: p.StructureIDs,
	}
}

func (p WeblinkParams) request() weblinkRequest {
	tags := make([]string, 0, len(p.Tags))
	tags = append(tags, p.Tags...)
	return weblinkRequest{
		SpaceID:              p.SpaceID,
		URL:                  p.URL,
		TitleOverwrite:       p.Title,
		DescriptionOverwrite: p.Description,
		Tags:                 tags,
		MdText:               p.Notes,
	}
}

func (p DailyNoteParams) request() dailyNoteRequest {
	return dailyNoteRequest{
		SpaceID:     p.SpaceID,
		MdText:      p.Content,
		NoTimeStamp: p.NoTimestamp,
	}
}

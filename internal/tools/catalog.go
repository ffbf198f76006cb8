package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/spaces"
)

// schemaDialect is draft-07, where "format" is asserted during validation.
const schemaDialect = "http://json-schema.org/draft-07/schema#"

// Tool names.
const (
	NameListSpaces      = "list_spaces"
	NameGetSpaceInfo    = "get_space_info"
	NameSearchContent   = "search_content"
	NameSaveWeblink     = "save_weblink"
	NameSaveToDailyNote = "save_to_daily_note"
)

type spaceInfoArgs struct {
	SpaceID string `json:"spaceId"`
}

type searchArgs struct {
	SearchTerm         string   `json:"searchTerm"`
	SpaceIDs           []string `json:"spaceIds"`
	Mode               string   `json:"mode,omitempty"`
	FilterStructureIDs []string `json:"filterStructureIds,omitempty"`
}

type weblinkArgs struct {
	SpaceID              string   `json:"spaceId"`
	URL                  string   `json:"url"`
	TitleOverwrite       string   `json:"titleOverwrite,omitempty"`
	DescriptionOverwrite string   `json:"descriptionOverwrite,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	MdText               string   `json:"mdText,omitempty"`
}

type dailyNoteArgs struct {
	SpaceID     string `json:"spaceId"`
	MdText      string `json:"mdText"`
	NoTimeStamp bool   `json:"noTimeStamp,omitempty"`
}

// New builds the registry of every upstream operation.
func New(ops Operations) (*Registry, error) {
	if ops == nil {
		return nil, errors.New("tool operations are required")
	}

	return NewRegistry([]*Tool{
		{
			Name:        NameListSpaces,
			Description: "List every space the configured token can access.",
			ReadOnly:    true,
			InputSchema: objectSchema(nil, nil),
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				if err := decodeArgs(args, &struct{}{}); err != nil {
					return nil, err
				}
				list, err := ops.ListSpaces(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"spaces": list}, nil
			},
		},
		{
			Name:        NameGetSpaceInfo,
			Description: "Describe the structures (object types) and collections of a space.",
			ReadOnly:    true,
			InputSchema: objectSchema(map[string]any{
				"spaceId": idProperty("ID of the space."),
			}, []string{"spaceId"}),
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in spaceInfoArgs
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.GetSpaceInfo(ctx, in.SpaceID)
			},
		},
		{
			Name:        NameSearchContent,
			Description: "Search content across one or more spaces by full text or title.",
			ReadOnly:    true,
			InputSchema: objectSchema(map[string]any{
				"searchTerm": stringProperty("Text to search for."),
				"spaceIds":   idListProperty("IDs of the spaces to search."),
				"mode": map[string]any{
					"type":        "string",
					"description": "Match against full text or titles only.",
					"enum":        []string{string(core.SearchModeFullText), string(core.SearchModeTitleOnly)},
					"default":     string(core.DefaultSearchMode),
				},
				"filterStructureIds": arrayProperty("Only return objects of these structures."),
			}, []string{"searchTerm", "spaceIds"}),
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in searchArgs
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				mode, err := core.ParseSearchMode(in.Mode)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
				}
				results, err := ops.SearchContent(ctx, spaces.SearchParams{
					Query:        in.SearchTerm,
					SpaceIDs:     in.SpaceIDs,
					Mode:         mode,
					StructureIDs: in.FilterStructureIDs,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"results": results}, nil
			},
		},
		{
			Name:        NameSaveWeblink,
			Description: "Save a web link to a space, optionally overriding its title and description and attaching markdown notes.",
			InputSchema: objectSchema(map[string]any{
				"spaceId":              idProperty("ID of the space to save into."),
				"url":                  map[string]any{"type": "string", "format": "uri", "description": "The URL to save."},
				"titleOverwrite":       stringProperty("Title to use instead of the page title."),
				"descriptionOverwrite": stringProperty("Description to use instead of the page description."),
				"tags":                 arrayProperty("Tags to attach."),
				"mdText":               stringProperty("Markdown notes stored with the link."),
			}, []string{"spaceId", "url"}),
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in weblinkArgs
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.SaveWeblink(ctx, spaces.WeblinkParams{
					SpaceID:     in.SpaceID,
					URL:         in.URL,
					Title:       in.TitleOverwrite,
					Description: in.DescriptionOverwrite,
					Tags:        in.Tags,
					Notes:       in.MdText,
				})
			},
		},
		{
			Name:        NameSaveToDailyNote,
			Description: "Append markdown to today's daily note in a space.",
			InputSchema: objectSchema(map[string]any{
				"spaceId":     idProperty("ID of the space."),
				"mdText":      stringProperty("Markdown to append."),
				"noTimeStamp": map[string]any{"type": "boolean", "description": "Skip the timestamp prefix.", "default": false},
			}, []string{"spaceId", "mdText"}),
			handler: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in dailyNoteArgs
				if err := decodeArgs(args, &in); err != nil {
					return nil, err
				}
				return ops.SaveToDailyNote(ctx, spaces.DailyNoteParams{
					SpaceID:     in.SpaceID,
					Content:     in.MdText,
					NoTimestamp: in.NoTimeStamp,
				})
			},
		},
	})
}

func objectSchema(properties map[string]any, required []string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"$schema":              schemaDialect,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func idProperty(description string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "description": description}
}

func idListProperty(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string", "minLength": 1},
		"minItems":    1,
		"description": description,
	}
}

func arrayProperty(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

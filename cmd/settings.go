package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"guildconfig/models"
	"guildconfig/service"
)

// ShowSettings writes the stored settings of a guild as indented JSON
func ShowSettings(ctx context.Context, settings service.GuildSettingsService, guildID string, w io.Writer) error {
	gs, err := settings.GetSettings(ctx, guildID)
	if err != nil {
		return err
	}
	return writeDocument(w, gs.ToDocument())
}

// SetSettings applies a JSON patch document to a guild and writes the saved record
func SetSettings(ctx context.Context, settings service.GuildSettingsService, guildID, patchJSON string, w io.Writer) error {
	var doc models.Document
	if err := json.NewDecoder(strings.NewReader(patchJSON)).Decode(&doc); err != nil {
		return fmt.Errorf("patch must be a JSON object: %w", err)
	}
	if doc == nil {
		return errors.New("patch must be a JSON object")
	}

	gs, err := settings.SaveSettings(ctx, guildID, models.DecodePatch(doc))
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			for _, v := range validationErr.Violations {
				fmt.Fprintf(w, "  - %s\n", v)
			}
		}
		return err
	}
	return writeDocument(w, gs.ToDocument())
}

func writeDocument(w io.Writer, doc models.Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return nil
}

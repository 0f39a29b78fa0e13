package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"guildconfig/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuildID = "123456789012345678"

func newTestSettingsService() service.GuildSettingsService {
	return service.NewGuildSettingsService(service.NewMemoryGuildSettingsRepository(), nil, nil, nil)
}

func TestShowSettings(t *testing.T) {
	svc := newTestSettingsService()

	var out bytes.Buffer
	require.NoError(t, ShowSettings(context.Background(), svc, testGuildID, &out))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, testGuildID, doc["guildId"])
	assert.Equal(t, ".", doc["prefix"])
	assert.Contains(t, out.String(), "✅ I accept the rules", "emoji is not escaped")
}

func TestShowSettings_InvalidGuild(t *testing.T) {
	err := ShowSettings(context.Background(), newTestSettingsService(), "abc", &bytes.Buffer{})
	assert.ErrorIs(t, err, service.ErrInvalidGuildID)
}

func TestSetSettings(t *testing.T) {
	svc := newTestSettingsService()
	ctx := context.Background()

	var out bytes.Buffer
	err := SetSettings(ctx, svc, testGuildID, `{"prefix":"!","welcomeChannel":"111111111111111111"}`, &out)
	require.NoError(t, err)

	gs, err := svc.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, "!", gs.Prefix)
	require.NotNil(t, gs.WelcomeChannel)

	// null clears a reference
	out.Reset()
	require.NoError(t, SetSettings(ctx, svc, testGuildID, `{"welcomeChannel":null}`, &out))
	gs, err = svc.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Nil(t, gs.WelcomeChannel)
	assert.Equal(t, "!", gs.Prefix)
}

func TestSetSettings_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		patch   string
		wantOut string
	}{
		{"not json", `{prefix`, ""},
		{"not an object", `null`, ""},
		{"invalid record", `{"roleGrantRules":[{"targetRole":"222222222222222222","condition":"bogus"}]}`, "roleGrantRules[0].condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := SetSettings(context.Background(), newTestSettingsService(), testGuildID, tt.patch, &out)
			require.Error(t, err)
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

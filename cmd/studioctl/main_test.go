package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolatedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.db")
	t.Setenv("STORE_PATH", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MEDIA_DIR", "")
	t.Setenv("GATEWAY_API_KEY", "")
	t.Setenv("MODEL_CATALOG_PATH", "")
	return path
}

func TestModelsJSON(t *testing.T) {
	isolatedStore(t)
	out, err := runCLI(t, "models", "--json")
	require.NoError(t, err)
	var c catalog.Catalog
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	require.NotEmpty(t, c.Images)
	require.NotEmpty(t, c.Videos)
}

func TestModelsTable(t *testing.T) {
	isolatedStore(t)
	out, err := runCLI(t, "models")
	require.NoError(t, err)
	require.Contains(t, out, "gemini-2.5-flash-image")
	require.Contains(t, out, "sora-2-all")
}

func TestAssetsListEmptyStore(t *testing.T) {
	isolatedStore(t)
	out, err := runCLI(t, "assets", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No assets")
}

func TestAssetsDeleteUnknown(t *testing.T) {
	isolatedStore(t)
	_, err := runCLI(t, "assets", "delete", "nope")
	require.ErrorContains(t, err, "not found: nope")
}

func TestGenerateWithoutKeyFails(t *testing.T) {
	isolatedStore(t)
	_, err := runCLI(t, "generate", "--prompt", "a lighthouse")
	require.ErrorIs(t, err, domain.ErrAuthMissing)

	out, err := runCLI(t, "assets", "list", "--json")
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(out))
}

func TestResumeOnEmptyStore(t *testing.T) {
	isolatedStore(t)
	out, err := runCLI(t, "resume")
	require.NoError(t, err)
	require.Contains(t, out, "Re-attached: 0")
	require.Contains(t, out, "Interrupted: 0")
}

func TestCredentialsShowMasksKey(t *testing.T) {
	isolatedStore(t)
	t.Setenv("GATEWAY_API_KEY", "sk-1234567890abcd")
	out, err := runCLI(t, "credentials", "show")
	require.NoError(t, err)
	require.Contains(t, out, "sk-1…abcd")
	require.NotContains(t, out, "567890")
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter("video", "COMPLETED")
	require.NoError(t, err)
	require.Equal(t, domain.AssetTypeVideo, f.Type)
	require.Equal(t, domain.StatusCompleted, f.Status)

	_, err = parseFilter("gif", "")
	require.Error(t, err)
	_, err = parseFilter("", "done")
	require.Error(t, err)
}

func TestGenerateFlagsRequest(t *testing.T) {
	f := generateFlags{typ: "music", prompt: "lofi rain", count: 1, lyrics: "[Verse]\nhello"}
	req, err := f.request()
	require.NoError(t, err)
	require.Equal(t, domain.AssetTypeMusic, req.Type)
	require.Equal(t, domain.MusicModeCustom, req.MusicMode)

	f.lyrics = ""
	req, err = f.request()
	require.NoError(t, err)
	require.Equal(t, domain.MusicModeInspiration, req.MusicMode)

	f = generateFlags{typ: "image", references: []string{"https://cdn.example.com/ref.png"}}
	req, err = f.request()
	require.NoError(t, err)
	require.Len(t, req.ReferenceImages, 1)
	require.True(t, req.ReferenceImages[0].IsRemote())

	_, err = generateFlags{typ: "hologram"}.request()
	require.Error(t, err)
}

func TestAssetRows(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := assetRows([]domain.GeneratedAsset{{
		ID:           "a1",
		Type:         domain.AssetTypeImage,
		Status:       domain.StatusCompleted,
		ModelID:      "gemini-2.5-flash-image",
		GenTimeLabel: "12s",
		Prompt:       strings.Repeat("word ", 20),
		Timestamp:    now.Add(-2 * time.Hour).UnixMilli(),
	}}, now)
	require.Len(t, rows, 1)
	require.Equal(t, "2 hours ago", rows[0][4])
	require.Len(t, []rune(rows[0][6]), promptColumnWidth)
	require.True(t, strings.HasSuffix(rows[0][6], "…"))
}

func TestMaskKey(t *testing.T) {
	require.Equal(t, "(not set)", maskKey(""))
	require.Equal(t, "****", maskKey("short"))
	require.Equal(t, "abcd…wxyz", maskKey("abcdefghijklmnopqrstuvwxyz"))
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	require.Contains(t, out, "only")
	require.Empty(t, renderTable(nil, nil, nil))
}

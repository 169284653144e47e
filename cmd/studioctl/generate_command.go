package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/domain"
)

type generateFlags struct {
	typ          string
	model        string
	prompt       string
	count        int
	ratio        string
	size         string
	option       int
	transparent  bool
	references   []string
	voice        string
	style        string
	title        string
	lyrics       string
	instrumental bool
	locale       string
	wait         bool
	timeout      time.Duration
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit a generation request",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			assets, err := rt.Submitter.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ids := make([]string, 0, len(assets))
			for _, a := range assets {
				ids = append(ids, a.ID)
				fmt.Fprintf(out, "Submitted %s (%s)\n", a.ID, a.ModelName)
			}
			if !f.wait {
				// queued tasks stay pending and are picked up by `resume` or the server
				rt.Submitter.Wait()
				return nil
			}

			waitCtx, cancel := withOptionalTimeout(cmd.Context(), f.timeout)
			defer cancel()
			settled, err := waitTerminal(waitCtx, rt.Library, ids)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Label", "URL"},
				resultRows(settled),
				nil,
			))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.typ, "type", "t", "image", "Asset type: image, video, audio or music")
	flags.StringVarP(&f.model, "model", "m", "", "Model id (defaults to the first model of the type)")
	flags.StringVarP(&f.prompt, "prompt", "p", "", "Prompt, script or song description")
	flags.IntVarP(&f.count, "count", "n", 1, "Number of outputs")
	flags.StringVar(&f.ratio, "ratio", "", "Aspect ratio")
	flags.StringVar(&f.size, "size", "", "Image resolution")
	flags.IntVar(&f.option, "option", 0, "Video duration tier index")
	flags.BoolVar(&f.transparent, "transparent", false, "Request a transparent background")
	flags.StringSliceVar(&f.references, "ref", nil, "Reference image path or URL (repeatable)")
	flags.StringVar(&f.voice, "voice", "", "Voice for speech synthesis")
	flags.StringVar(&f.style, "style", "", "Music style tags")
	flags.StringVar(&f.title, "title", "", "Song title")
	flags.StringVar(&f.lyrics, "lyrics", "", "Song lyrics; switches music to custom mode")
	flags.BoolVar(&f.instrumental, "instrumental", false, "Instrumental music")
	flags.StringVar(&f.locale, "locale", "", "Locale for status labels")
	flags.BoolVarP(&f.wait, "wait", "w", false, "Wait until every output settles")
	flags.DurationVar(&f.timeout, "timeout", 30*time.Minute, "Maximum time to wait")
	return cmd
}

func (f generateFlags) request() (domain.GenerateRequest, error) {
	t, ok := domain.ParseAssetType(f.typ)
	if !ok {
		return domain.GenerateRequest{}, fmt.Errorf("unknown type %q", f.typ)
	}
	req := domain.GenerateRequest{
		GenerationConfig: domain.GenerationConfig{
			Type:         t,
			ModelID:      f.model,
			Prompt:       f.prompt,
			AspectRatio:  f.ratio,
			ImageSize:    f.size,
			Transparent:  f.transparent,
			OptionIndex:  f.option,
			Voice:        f.voice,
			Style:        f.style,
			Title:        f.title,
			Lyrics:       f.lyrics,
			Instrumental: f.instrumental,
			Locale:       f.locale,
		},
		Count: f.count,
	}
	if t == domain.AssetTypeMusic {
		req.MusicMode = domain.MusicModeInspiration
		if strings.TrimSpace(f.lyrics) != "" {
			req.MusicMode = domain.MusicModeCustom
		}
	}
	for _, ref := range f.references {
		media, err := referenceFrom(ref)
		if err != nil {
			return domain.GenerateRequest{}, err
		}
		req.ReferenceImages = append(req.ReferenceImages, media)
	}
	return req, nil
}

func referenceFrom(ref string) (domain.ReferenceMedia, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return domain.ReferenceMedia{MIMEType: "image/png", Data: ref}, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return domain.ReferenceMedia{}, fmt.Errorf("read reference: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref)))
	if mimeType == "" {
		mimeType = "image/png"
	}
	return domain.ReferenceMedia{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
		Name:     filepath.Base(ref),
	}, nil
}

func resultRows(assets []domain.GeneratedAsset) [][]string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		url := a.URL
		if strings.HasPrefix(url, "data:") {
			url = "(inline)"
		}
		rows = append(rows, []string{a.ID, string(a.Status), a.GenTimeLabel, url})
	}
	return rows
}

func newLyricsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lyrics <prompt>",
		Short: "Write song lyrics and print them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()
			text, err := rt.Submitter.Lyrics(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

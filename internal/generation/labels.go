package generation

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Label keys. Values are the English renderings.
const (
	LabelGenerating       = "generating..."
	LabelRemixing         = "remixing..."
	LabelFailed           = "failed"
	LabelRequestFailed    = "request failed"
	LabelNoResult         = "no result"
	LabelNoImage          = "no image"
	LabelNoVideo          = "no video"
	LabelNoAudio          = "no audio"
	LabelInterrupted      = "interrupted"
	LabelPollingAbandoned = "polling abandoned"
)

var chineseLabels = map[string]string{
	LabelGenerating:       "生成中...",
	LabelRemixing:         "重绘中...",
	LabelFailed:           "失败",
	LabelRequestFailed:    "请求失败",
	LabelNoResult:         "无结果",
	LabelNoImage:          "无图",
	LabelNoVideo:          "无视频",
	LabelNoAudio:          "无音频",
	LabelInterrupted:      "已中断",
	LabelPollingAbandoned: "轮询已放弃",
}

// SupportedLocales lists the languages labels are rendered in.
var SupportedLocales = []language.Tag{language.English, language.Chinese}

// Labels renders short user-facing status labels for one locale.
type Labels struct {
	printer *message.Printer
	tag     language.Tag
}

var labelCatalog = buildLabelCatalog()

func buildLabelCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, zh := range chineseLabels {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Chinese, key, zh)
	}
	return b
}

var localeMatcher = language.NewMatcher(SupportedLocales)

// MatchLocale picks the supported locale closest to the given tags or
// Accept-Language values.
func MatchLocale(preferences ...string) language.Tag {
	_, idx := language.MatchStrings(localeMatcher, preferences...)
	return SupportedLocales[idx]
}

// NewLabels returns labels for locale, falling back to English.
func NewLabels(locale string) Labels {
	tag := MatchLocale(locale)
	return Labels{printer: message.NewPrinter(tag, message.Catalog(labelCatalog)), tag: tag}
}

func (l Labels) Locale() language.Tag {
	return l.tag
}

// Text renders key.
func (l Labels) Text(key string) string {
	if l.printer == nil {
		return key
	}
	return l.printer.Sprintf(key)
}

// Elapsed renders the generation time between start and end in whole seconds.
func Elapsed(start, end time.Time) string {
	secs := math.Round(end.Sub(start).Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%ds", int64(secs))
}

package generation

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
)

// state is the interpretation of one status response.
type state int

const (
	statePending state = iota
	stateActive
	stateSucceeded
	stateFailed
)

// Outcome is what a status response says about a task.
type Outcome struct {
	state    state
	Locator  string
	CoverURL string
	Title    string
	Prompt   string
	Text     string
	Message  string
	// EmptyLabel is used when the provider reports success without content.
	EmptyLabel string
}

func (o Outcome) Terminal() bool {
	return o.state == stateSucceeded || o.state == stateFailed
}

func (o Outcome) Succeeded() bool { return o.state == stateSucceeded }

func (o Outcome) Failed() bool { return o.state == stateFailed }

// shape describes where one provider family keeps its status, result and
// message. Each field is an ordered list of paths; the first hit wins.
type shape struct {
	name     string
	interval time.Duration
	path     func(taskID string) string
	// root, when set, re-roots the document before extraction.
	root         func(doc gateway.Document) gateway.Document
	statusPaths  []string
	success      []string
	failure      []string
	active       []string
	locatorPaths []string
	coverPaths   []string
	titlePaths   []string
	promptPaths  []string
	textPaths    []string
	messagePaths []string
	emptyLabel   string
	needsLocator bool
	failFallback string
}

var activeTokens = []string{"processing", "running", "in_progress", "generating", "streaming", "submitted"}

var videoShape = shape{
	interval:     5 * time.Second,
	statusPaths:  []string{"status", "state", "data.status"},
	success:      []string{"completed", "succeeded", "success", "done"},
	failure:      []string{"failed", "error", "rejected"},
	active:       activeTokens,
	locatorPaths: []string{"video_url", "url", "uri", "data.url", "data.video_url"},
	messagePaths: []string{"error.message", "fail_reason", "data.fail_reason", "data.error.message"},
	emptyLabel:   LabelNoVideo,
	needsLocator: true,
	failFallback: LabelFailed,
}

func klingShape(name, path string, interval time.Duration, locator, empty string) shape {
	return shape{
		name:         name,
		interval:     interval,
		path:         func(id string) string { return path + url.PathEscape(id) },
		statusPaths:  []string{"data.task_status"},
		success:      []string{"succeed"},
		failure:      []string{"failed"},
		active:       []string{"processing", "submitted"},
		locatorPaths: []string{locator},
		messagePaths: []string{"data.task_status_msg"},
		emptyLabel:   empty,
		needsLocator: true,
		failFallback: LabelFailed,
	}
}

// sunoResult re-roots at data when the fetch wraps the record.
func sunoResult(doc gateway.Document) gateway.Document {
	if v, ok := doc.Lookup("data"); ok {
		if _, isObject := v.(map[string]any); isObject {
			return doc.Sub("data")
		}
	}
	return doc
}

func sunoShape(name string) shape {
	return shape{
		name:         name,
		interval:     5 * time.Second,
		path:         func(id string) string { return "/suno/fetch/" + url.PathEscape(id) },
		root:         sunoResult,
		statusPaths:  []string{"status"},
		success:      []string{"complete", "completed", "success"},
		failure:      []string{"failed", "error"},
		active:       []string{"queued", "streaming", "processing", "running", "submitted"},
		messagePaths: []string{"error_message", "fail_reason"},
		failFallback: LabelFailed,
	}
}

// resolveShape returns the extraction rules for a family name.
func resolveShape(family string) (shape, error) {
	switch family {
	case domain.FamilyKlingImage:
		return klingShape(family, "/kling/v1/images/omni-image/", 3*time.Second, "data.task_result.images.0.url", LabelNoImage), nil
	case domain.FamilyVideoQuery:
		s := videoShape
		s.name = family
		s.path = func(id string) string { return "/v1/video/query?id=" + url.QueryEscape(id) }
		return s, nil
	case domain.FamilyVideoOpenAI:
		s := videoShape
		s.name = family
		s.path = func(id string) string { return "/v1/videos/" + url.PathEscape(id) }
		return s, nil
	case domain.FamilySunoMusic:
		s := sunoShape(family)
		s.locatorPaths = []string{"audio_url", "url"}
		s.coverPaths = []string{"image_url", "cover_url"}
		s.titlePaths = []string{"title"}
		s.promptPaths = []string{"metadata.prompt", "prompt"}
		s.emptyLabel = LabelNoAudio
		s.needsLocator = true
		return s, nil
	case domain.FamilySunoLyrics:
		s := sunoShape(family)
		s.textPaths = []string{"content", "lyrics", "text", "data"}
		s.emptyLabel = LabelNoResult
		return s, nil
	}
	if ep, ok := domain.KlingVideoEndpoint(family); ok {
		return klingShape(family, "/kling/v1/videos/"+ep+"/", 5*time.Second, "data.task_result.videos.0.url", LabelNoVideo), nil
	}
	return shape{}, fmt.Errorf("generation: unknown polling family %q", family)
}

// interpret maps a status document onto an Outcome.
func (s shape) interpret(doc gateway.Document) Outcome {
	if s.root != nil {
		doc = s.root(doc)
	}
	status := strings.ToLower(doc.FirstString(s.statusPaths...))
	out := Outcome{EmptyLabel: s.emptyLabel}
	switch {
	case contains(s.success, status):
		out.state = stateSucceeded
		out.Locator = doc.FirstString(s.locatorPaths...)
		out.CoverURL = doc.FirstString(s.coverPaths...)
		out.Title = doc.FirstString(s.titlePaths...)
		out.Prompt = doc.FirstString(s.promptPaths...)
		if len(s.textPaths) > 0 {
			if v, ok := doc.FirstValue(s.textPaths...); ok {
				out.Text = gateway.TextValue(v)
			}
		}
	case contains(s.failure, status):
		out.state = stateFailed
		out.Message = doc.FirstString(s.messagePaths...)
	case contains(s.active, status):
		out.state = stateActive
	default:
		out.state = statePending
	}
	return out
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

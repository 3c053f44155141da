package podcast

import (
	"errors"
	"strings"

	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

type Mode string

const (
	ModeSolo     Mode = "solo"
	ModeDialogue Mode = "dialogue"
)

var (
	ErrTopicRequired    = errors.New("topic is required")
	ErrSpeakersRequired = errors.New("both speakers are required for dialogue mode")
)

// Format is the script shape: Solo or Dialogue. Each carries only the fields
// its prompt needs.
type Format interface {
	Mode() Mode
	render(b *strings.Builder, topic, minutes string, targetWords int)
}

type Solo struct {
	Name string
}

func (Solo) Mode() Mode { return ModeSolo }

type Dialogue struct {
	SpeakerA string
	SpeakerB string
}

func (Dialogue) Mode() Mode { return ModeDialogue }

// Plan is a validated generation request.
type Plan struct {
	Format      Format
	Topic       string
	Minutes     float64
	TargetWords int
}

// NewPlan validates req and derives the word target. Unknown modes fall back
// to Solo.
func NewPlan(req protocol.GenerateRequest) (Plan, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return Plan{}, ErrTopicRequired
	}

	var format Format
	if Mode(req.Mode) == ModeDialogue {
		if strings.TrimSpace(req.SpeakerA) == "" || strings.TrimSpace(req.SpeakerB) == "" {
			return Plan{}, ErrSpeakersRequired
		}
		format = Dialogue{SpeakerA: req.SpeakerA, SpeakerB: req.SpeakerB}
	} else {
		format = Solo{Name: req.Name}
	}

	minutes := ResolveMinutes(req.Minutes)
	return Plan{
		Format:      format,
		Topic:       req.Topic,
		Minutes:     minutes,
		TargetWords: TargetWords(minutes),
	}, nil
}

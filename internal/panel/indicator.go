package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/topic"
)

// indicatorPanel is a group of independent named booleans.
//
// The status topic drives the "main" indicator and any indicator that
// declares the status suffix. Other indicators are addressed by their
// declared suffix, or, without one, by a last topic segment equal to their
// ID or to the slug of their label.
type indicatorPanel struct {
	base
	states map[string]bool
}

func newIndicator(b base) *indicatorPanel {
	states := make(map[string]bool, len(b.dev.Indicators))
	for _, ind := range b.dev.Indicators {
		states[ind.ID] = false
	}
	return &indicatorPanel{base: b, states: states}
}

// Topics returns the status topic, then one topic per way each indicator
// can be addressed, then any declared value topics. Duplicates are dropped.
func (p *indicatorPanel) Topics() []string {
	seen := make(map[string]struct{})
	var topics []string
	add := func(t string) {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}

	add(p.dev.StatusTopic())
	for _, ind := range p.dev.Indicators {
		if ind.Topic != "" {
			add(p.dev.ValueTopic(ind.Topic))
			continue
		}
		if ind.ID == device.MainIndicatorID {
			continue
		}
		if topic.ValidSegment(ind.ID) {
			add(p.dev.ValueTopic(topic.ValueSuffix(ind.ID)))
		}
		if s := topic.Slug(ind.Label); s != "" && s != ind.ID {
			add(p.dev.ValueTopic(topic.ValueSuffix(s)))
		}
	}
	for _, t := range p.valueTopics() {
		add(t)
	}
	return topics
}

// ReceiveUpdate sets every indicator the topic addresses. Payloads missing
// from the state-value table decode as false.
func (p *indicatorPanel) ReceiveUpdate(payload, t string) error {
	ids := p.resolve(t)
	if len(ids) == 0 {
		return fmt.Errorf("%w: %s", ErrUnhandledTopic, t)
	}

	state := p.dev.StateValues[payload]

	p.mu.Lock()
	for _, id := range ids {
		p.states[id] = state
	}
	p.mu.Unlock()
	return nil
}

// resolve returns the IDs of the indicators addressed by t.
func (p *indicatorPanel) resolve(t string) []string {
	suffix, ok := p.suffix(t)
	if !ok {
		return nil
	}
	last := suffix[strings.LastIndex(suffix, "/")+1:]

	var ids []string
	for _, ind := range p.dev.Indicators {
		switch {
		case ind.Topic != "":
			if ind.Topic == suffix {
				ids = append(ids, ind.ID)
			}
		case suffix == topic.SuffixStatus:
			if ind.ID == device.MainIndicatorID {
				ids = append(ids, ind.ID)
			}
		case ind.ID == last || topic.Slug(ind.Label) == last:
			ids = append(ids, ind.ID)
		}
	}
	return ids
}

// IssueCommand always fails: indicator groups are read-only.
func (p *indicatorPanel) IssueCommand(context.Context, Intent) error {
	return ErrReadOnly
}

// Render lists the indicators in declaration order. On is set when any
// indicator is active.
func (p *indicatorPanel) Render() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.view()
	v.ReadOnly = true
	for _, ind := range p.dev.Indicators {
		active := p.states[ind.ID]
		v.On = v.On || active
		v.Rows = append(v.Rows, Row{ID: ind.ID, Label: ind.Label, Active: active})
	}
	return v
}

package pomodoro

import (
	"strings"

	"focusbot/internal/model"
)

const noPingMarker = "🤐"

type Participant struct {
	Member model.Member `json:"member"`
	Ping   bool         `json:"ping"`
	Status string       `json:"status,omitempty"`
}

// Participants keeps the members attached to one session in the order they
// first joined.
type Participants struct {
	order []string
	byID  map[string]*Participant
}

func NewParticipants() *Participants {
	return &Participants{byID: make(map[string]*Participant)}
}

// Add registers member or replaces their details if already present. A
// rejoining member keeps their place in the list.
func (p *Participants) Add(member model.Member, ping bool, status string) {
	if existing, ok := p.byID[member.ID]; ok {
		existing.Member = member
		existing.Ping = ping
		existing.Status = strings.TrimSpace(status)
		return
	}
	p.order = append(p.order, member.ID)
	p.byID[member.ID] = &Participant{Member: member, Ping: ping, Status: strings.TrimSpace(status)}
}

func (p *Participants) Remove(memberID string) bool {
	if _, ok := p.byID[memberID]; !ok {
		return false
	}
	delete(p.byID, memberID)
	for i, id := range p.order {
		if id == memberID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

func (p *Participants) Len() int {
	return len(p.order)
}

func (p *Participants) List() []Participant {
	out := make([]Participant, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.byID[id])
	}
	return out
}

// NameList is one member per line, marking those who opted out of pings.
func (p *Participants) NameList() string {
	if len(p.order) == 0 {
		return "No one yet"
	}
	lines := make([]string, 0, len(p.order))
	for _, participant := range p.List() {
		line := participant.Member.Name
		if !participant.Ping {
			line += " " + noPingMarker
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (p *Participants) StatusList() string {
	lines := make([]string, 0, len(p.order))
	for _, participant := range p.List() {
		if participant.Status != "" {
			lines = append(lines, participant.Status)
		}
	}
	if len(lines) == 0 {
		return "Nothing submitted"
	}
	return strings.Join(lines, "\n")
}

// MentionList is the space separated mentions of everyone who wants pings.
func (p *Participants) MentionList() string {
	mentions := make([]string, 0, len(p.order))
	for _, participant := range p.List() {
		if participant.Ping {
			mentions = append(mentions, participant.Member.Mention())
		}
	}
	return strings.Join(mentions, " ")
}

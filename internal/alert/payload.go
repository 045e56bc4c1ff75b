package alert

import (
	"fmt"
	"strings"
	"time"

	"sui-invariant-monitor/internal/model"
)

// WebhookPayload is the generic JSON body posted for an alert.
type WebhookPayload struct {
	DeliveryID      string            `json:"delivery_id"`
	InvariantID     string            `json:"invariant_id"`
	InvariantName   string            `json:"invariant_name"`
	Status          string            `json:"status"`
	ViolationReason *string           `json:"violation_reason"`
	Timestamp       string            `json:"timestamp"`
	Computation     model.Computation `json:"computation"`
}

func NewWebhookPayload(r model.Result, deliveryID string) WebhookPayload {
	return WebhookPayload{
		DeliveryID:      deliveryID,
		InvariantID:     r.ID,
		InvariantName:   r.Name,
		Status:          strings.ToLower(string(r.Status)),
		ViolationReason: r.ViolationReason,
		Timestamp:       r.EvaluatedAt.UTC().Format(time.RFC3339Nano),
		Computation:     r.Computation,
	}
}

type DiscordMessage struct {
	Content *string        `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       uint32         `json:"color"`
	Fields      []DiscordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
}

type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const (
	ColorOK       uint32 = 0x00FF00
	ColorViolated uint32 = 0xFF0000
	ColorError    uint32 = 0xFFAA00

	violationBanner = "🚨 **Invariant Violation Detected**"
)

func statusColor(s model.Status) uint32 {
	switch s {
	case model.StatusViolated:
		return ColorViolated
	case model.StatusError:
		return ColorError
	default:
		return ColorOK
	}
}

func statusEmoji(s model.Status) string {
	switch s {
	case model.StatusViolated:
		return "🚨"
	case model.StatusError:
		return "⚠️"
	default:
		return "✅"
	}
}

// NewDiscordMessage renders a result as a single rich embed. Violations
// carry a banner in the message content.
func NewDiscordMessage(r model.Result) DiscordMessage {
	emoji := statusEmoji(r.Status)
	fields := []DiscordField{
		{Name: "Status", Value: fmt.Sprintf("%s %s", emoji, strings.ToUpper(string(r.Status))), Inline: true},
		{Name: "Invariant ID", Value: r.ID, Inline: true},
		{Name: "Formula", Value: fmt.Sprintf("`%s`", r.Computation.Formula)},
		{Name: "Result", Value: fmt.Sprintf("`%s`", r.Computation.Result)},
	}
	if r.ViolationReason != nil {
		fields = append(fields, DiscordField{Name: "Violation Reason", Value: *r.ViolationReason})
	}
	if len(r.Computation.Inputs) > 0 {
		lines := make([]string, 0, len(r.Computation.Inputs))
		for _, in := range r.Computation.Inputs {
			lines = append(lines, fmt.Sprintf("• **%s**: %s", in.Name, in.Value))
		}
		fields = append(fields, DiscordField{Name: "Computation Inputs", Value: strings.Join(lines, "\n")})
	}

	msg := DiscordMessage{
		Embeds: []DiscordEmbed{{
			Title:       fmt.Sprintf("%s %s", emoji, r.Name),
			Description: r.Description,
			Color:       statusColor(r.Status),
			Fields:      fields,
			Timestamp:   r.EvaluatedAt.UTC().Format(time.RFC3339Nano),
		}},
	}
	if r.Status == model.StatusViolated {
		banner := violationBanner
		msg.Content = &banner
	}
	return msg
}

// NewViolationEnvelope frames an alert for the streaming sinks.
func NewViolationEnvelope(monitorID string, p WebhookPayload, at time.Time) model.Envelope {
	return model.Envelope{
		Type:          model.FrameTypeViolation,
		MonitorID:     monitorID,
		TimestampUnix: at.Unix(),
		Payload:       p,
	}
}

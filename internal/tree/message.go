package tree

import "context"

// MessageNode is a terminal placeholder such as "No repositories found".
type MessageNode struct {
	Base
	message string
	tooltip string
	icon    string
}

// NewMessage builds a placeholder whose identity is derived from its owner
// and text, so an unchanged placeholder reconciles onto itself.
func NewMessage(ownerID, message string) *MessageNode {
	return &MessageNode{
		Base:    NewBase(MessageID(ownerID, message), Locator{}),
		message: message,
	}
}

func MessageID(ownerID, message string) string {
	return ownerID + ":message(" + message + ")"
}

func (m *MessageNode) WithTooltip(tooltip string) *MessageNode {
	m.tooltip = tooltip
	return m
}

func (m *MessageNode) WithIcon(icon string) *MessageNode {
	m.icon = icon
	return m
}

func (m *MessageNode) Message() string { return m.message }

func (m *MessageNode) Children(context.Context) ([]Node, error) {
	return nil, nil
}

func (m *MessageNode) Describe(context.Context) (Item, error) {
	return Item{
		ID:       m.ID(),
		Label:    m.message,
		Tooltip:  m.tooltip,
		Icon:     m.icon,
		Kind:     KindMessage,
		Collapse: CollapseNone,
	}, nil
}

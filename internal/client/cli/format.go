package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
)

const timeLayout = "15:04:05"

func formatMessage(m *models.Message) string {
	body := m.Content
	switch {
	case m.Deleted:
		body = "(recalled)"
	case m.Type != models.MessageText:
		body = fmt.Sprintf("[%s] %s", m.Type, m.Content)
	}
	return fmt.Sprintf("[%d #%d %s] %s: %s", m.ConversationID, m.Sequence, m.CreatedAt.Local().Format(timeLayout), m.SenderName, body)
}

func formatSummary(s *models.ConversationSummary, unread int64) string {
	line := fmt.Sprintf("%5d  %-7s %s", s.ID, s.Kind, s.DisplayName)
	if unread > 0 {
		line += fmt.Sprintf(" (%d unread)", unread)
	}
	if s.Preview != nil {
		line += fmt.Sprintf("\n       %s: %s", s.Preview.SenderName, s.Preview.Content)
	}
	return line
}

// formatEvent renders an inbound frame for the terminal. Frames the user
// does not need to see yield "".
func formatEvent(f realtime.Frame) string {
	switch f.Event {
	case realtime.EventReceiveMessage:
		var m models.Message
		if json.Unmarshal(f.Data, &m) != nil {
			return ""
		}
		return formatMessage(&m)

	case realtime.EventMessageSent:
		var p realtime.MessageSentPayload
		if json.Unmarshal(f.Data, &p) != nil || p.Message == nil {
			return ""
		}
		return fmt.Sprintf("sent #%d (id %d)", p.Message.Sequence, p.Message.ID)

	case realtime.EventMessageError:
		var p realtime.MessageErrorPayload
		_ = json.Unmarshal(f.Data, &p)
		return "send failed: " + p.Error

	case realtime.EventMessageRecalled:
		var p realtime.MessageRecalledPayload
		_ = json.Unmarshal(f.Data, &p)
		return fmt.Sprintf("[%d] message %d was recalled", p.ConversationID, p.MessageID)

	case realtime.EventNewConversation:
		var p realtime.NewConversationPayload
		_ = json.Unmarshal(f.Data, &p)
		name := p.Name
		if name == "" {
			name = string(p.Kind)
		}
		return fmt.Sprintf("added to conversation %d (%s)", p.ConversationID, name)

	case realtime.EventUserStatus:
		var p realtime.UserStatusPayload
		_ = json.Unmarshal(f.Data, &p)
		return fmt.Sprintf("user %d is %s", p.UserID, p.Status)

	case realtime.EventReadUpdated:
		var p realtime.ReadUpdatedPayload
		_ = json.Unmarshal(f.Data, &p)
		return fmt.Sprintf("[%d] read up to #%d, %d unread", p.ConversationID, p.LastReadSequence, p.UnreadCount)

	case realtime.EventMessages:
		var p realtime.MessagesPayload
		_ = json.Unmarshal(f.Data, &p)
		lines := make([]string, 0, len(p.Messages))
		for _, m := range p.Messages {
			lines = append(lines, formatMessage(m))
		}
		if len(lines) == 0 {
			return fmt.Sprintf("[%d] no new messages", p.ConversationID)
		}
		return strings.Join(lines, "\n")

	case realtime.EventRoomJoined:
		var p realtime.RoomPayload
		_ = json.Unmarshal(f.Data, &p)
		return fmt.Sprintf("joined %d", p.ConversationID)

	case realtime.EventRoomLeft:
		var p realtime.RoomPayload
		_ = json.Unmarshal(f.Data, &p)
		return fmt.Sprintf("left %d", p.ConversationID)

	case realtime.EventError:
		var p realtime.ErrorPayload
		_ = json.Unmarshal(f.Data, &p)
		if p.Event != "" {
			return fmt.Sprintf("error (%s): %s", p.Event, p.Error)
		}
		return "error: " + p.Error
	}
	return ""
}

func formatLastSeen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 " + timeLayout)
}

package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

const historyPage = 50

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := parseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// optionalSince reads an optional sequence argument at index i.
func optionalSince(args []string, i int) (int64, error) {
	if len(args) <= i {
		return 0, nil
	}
	v, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid sequence %q", args[i])
	}
	return v, nil
}

func (a *App) List(ctx context.Context) error {
	list, err := a.pull.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No conversations yet.")
		return nil
	}
	for _, s := range list {
		unread, err := a.pull.UnreadCount(ctx, s.ID)
		if err != nil {
			unread = 0
		}
		printlnFn(formatSummary(s, unread))
	}
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.rt.Join(id)
}

func (a *App) Leave(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.rt.Leave(id)
}

func (a *App) Send(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.rt.SendMessage(id, models.MessageText, strings.Join(args[1:], " "), a.nextClientID())
}

// SendFile expects args as kind ("file" or "audio"), conversation, path.
func (a *App) SendFile(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: %s <conv> <path>", args[0])
	}
	kind := models.MessageType(args[0])
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	url, err := a.pull.Upload(ctx, kind, args[2])
	if err != nil {
		return err
	}
	return a.rt.SendMessage(id, kind, url, a.nextClientID())
}

func (a *App) History(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	since, err := optionalSince(args, 1)
	if err != nil {
		return err
	}
	msgs, err := a.pull.History(ctx, id, since, historyPage)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		printlnFn("No messages.")
	}
	for _, m := range msgs {
		printlnFn(formatMessage(m))
	}
	return nil
}

func (a *App) Sync(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	since, err := optionalSince(args, 1)
	if err != nil {
		return err
	}
	return a.rt.Sync(id, since, historyPage)
}

func (a *App) Read(ctx context.Context, args []string) error {
	ids, err := parseIDs(args[:2])
	if err != nil {
		return err
	}
	return a.rt.MarkRead(ids[0], ids[1])
}

func (a *App) Recall(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.rt.Recall(id)
}

func (a *App) Members(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	list, err := a.pull.Participants(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range list {
		state := "offline, last seen " + formatLastSeen(p.LastSeen)
		if p.Online {
			state = "online"
		}
		printlnFn(fmt.Sprintf("%5d  %-20s %-6s %s", p.UserID, p.DisplayName, p.Role, state))
	}
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	st, err := a.pull.MessageStatus(ctx, id)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Message %d (conversation %d, #%d):", st.MessageID, st.ConversationID, st.Sequence))
	for _, r := range st.Receipts {
		line := fmt.Sprintf("%5d  %-20s %s", r.UserID, r.DisplayName, r.Status)
		if r.Status == models.ReceiptRead {
			line += " " + formatLastSeen(r.UpdatedAt)
		}
		printlnFn(line)
	}
	return nil
}

func (a *App) DM(ctx context.Context, args []string) error {
	peer, err := parseID(args[0])
	if err != nil {
		return err
	}
	resp, err := a.pull.CreatePrivate(ctx, peer)
	if err != nil {
		return err
	}
	if resp.Created {
		printlnFn(fmt.Sprintf("Created conversation %d", resp.Conversation.ID))
	} else {
		printlnFn(fmt.Sprintf("Conversation %d already exists", resp.Conversation.ID))
	}
	return nil
}

func (a *App) Group(ctx context.Context, args []string) error {
	members, err := parseIDs(args[1:])
	if err != nil {
		return err
	}
	resp, err := a.pull.CreateGroup(ctx, args[0], members)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Created group %d (%s)", resp.Conversation.ID, resp.Conversation.Name))
	return nil
}

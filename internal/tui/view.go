package tui

import (
	"fmt"
	"strings"
	"time"

	"propchat/internal/composer"
	"propchat/internal/conversation"
	"propchat/internal/message"

	"github.com/charmbracelet/lipgloss"
)

// chromeHeight is the space below and above the list: header, typing line,
// one composer panel line, the input and the footer.
const chromeHeight = 7

// bubbleWidth caps a bubble at two thirds of the screen.
func bubbleWidth(width int) int {
	return max(width*2/3, 20)
}

// renderRows rebuilds the viewport content, oldest message at the top.
func (m *Model) renderRows() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	switch {
	case m.opts.Surface.Loading():
		sb.WriteString(m.styles.Muted.Render(m.spinner.View()+" Loading older messages") + "\n")
	case m.opts.Surface.HasMore():
		sb.WriteString(m.styles.Muted.Render(m.keys.LoadMore.Help().Key+" for older messages") + "\n")
	}
	for i := len(m.rows) - 1; i >= 0; i-- {
		sb.WriteString(m.renderRow(m.rows[i], i == m.selected))
	}
	m.viewport.SetContent(sb.String())
}

func (m Model) renderRow(row conversation.Row, selected bool) string {
	var sb strings.Builder
	f := row.Facts

	if row.DateLabel != "" {
		label := m.styles.Separator.Render("── " + row.DateLabel + " ──")
		sb.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, label) + "\n")
	}

	style := m.styles.OtherBubble
	if f.Own {
		style = m.styles.OwnBubble
	}
	if selected {
		style = style.BorderForeground(m.styles.Theme.Accent)
	}
	bubble := style.
		Border(BubbleBorder(f.Corners)).
		MaxWidth(bubbleWidth(m.width)).
		Render(m.bubbleBody(row))

	if f.Own {
		sb.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble) + "\n")
		return sb.String()
	}

	if !f.PreviousSameSender {
		sb.WriteString(strings.Repeat(" ", 5) + m.styles.SenderName.Render(row.Message.SenderName) + "\n")
	}
	avatar := strings.Repeat(" ", 4)
	if f.ShowAvatar {
		avatar = m.styles.Avatar.Render(Initials(row.Message.SenderName))
	}
	// the avatar sits level with the bubble's last line
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Bottom, avatar, " ", bubble) + "\n")
	return sb.String()
}

func (m Model) bubbleBody(row conversation.Row) string {
	var parts []string
	if row.ReplyPreview != "" {
		parts = append(parts, m.styles.Reply.Render(row.ReplyPreview))
	}
	if row.Message.Content != "" {
		parts = append(parts, m.safeRenderMarkdown(row.Message.Content))
	}
	for _, a := range row.Attachments {
		parts = append(parts, m.styles.Attachment.Render("📎 "+a))
	}
	parts = append(parts, m.meta(row))
	return strings.Join(parts, "\n")
}

// meta is the bubble's footer: local time plus the delivery icon for own
// messages.
func (m Model) meta(row conversation.Row) string {
	clock := "--:--"
	if t, ok := row.Message.TimeIn(time.Local); ok {
		clock = t.Format("15:04")
	}
	if row.StatusIcon == "" {
		return m.styles.Status.Render(clock)
	}
	icon := m.styles.Status.Render(row.StatusIcon)
	if row.Message.Status == message.StatusFailed {
		icon = m.styles.Failed.Render(row.StatusIcon + " not sent")
	}
	return m.styles.Status.Render(clock) + " " + icon
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return strings.Trim(rendered, "\n ")
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := m.opts.Title
	if m.opts.Surface.Refreshing() {
		title += " " + m.spinner.View()
	}
	header := m.styles.Header.Width(m.width).Render(title)

	typingLine := m.styles.Typing.Render(m.opts.Surface.TypingLine())

	d := m.opts.Composer.Draft()
	var panel []string
	if p := m.composerPanel(d); p != "" {
		panel = append(panel, p)
	}

	vp := m.viewport
	chrome := lipgloss.JoinVertical(lipgloss.Left, append([]string{header, typingLine}, panel...)...)
	vp.Height = max(m.height-lipgloss.Height(chrome)-lipgloss.Height(m.textarea.View())-1, 3)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		vp.View(),
		typingLine,
		strings.Join(panel, "\n"),
		m.textarea.View(),
		m.footer(),
	)
}

// composerPanel shows the overlay, reply context, staged attachments and
// recording state above the input.
func (m Model) composerPanel(d composer.Draft) string {
	var lines []string

	switch d.Overlay {
	case composer.OverlayAttachMenu:
		lines = append(lines, m.styles.Overlay.Render("Attach: "+
			help(m.keys.PickLibrary, m.keys.PickCamera, m.keys.PickDocument, m.keys.PickLocation)))
	case composer.OverlayEmojiPicker:
		var opts []string
		for i, e := range Emojis {
			opts = append(opts, fmt.Sprintf("%d %s", i+1, e))
		}
		lines = append(lines, m.styles.Overlay.Render(strings.Join(opts, "  ")))
	}

	if d.ReplyingTo != nil {
		lines = append(lines, m.styles.Reply.Render("Replying to "+conversation.ReplyPreview(d.ReplyingTo)))
	}

	if len(d.Staged) > 0 {
		lines = append(lines, m.styles.Attachment.Render("📎 "+strings.Join(conversation.AttachmentSummary(d.Staged), ", ")))
	}
	if m.opts.Composer.IsUploading() {
		lines = append(lines, m.styles.Muted.Render(m.spinner.View()+" Uploading..."))
	}

	switch d.Recording {
	case composer.RecordingActive:
		lines = append(lines, m.styles.Recording.Render(fmt.Sprintf("● Recording %d:%02d", d.RecordingSeconds/60, d.RecordingSeconds%60))+
			m.styles.Muted.Render(help(m.keys.Record, m.keys.Cancel)))
	case composer.RecordingCancelling:
		lines = append(lines, m.styles.Recording.Render("Release to cancel")+
			m.styles.Muted.Render("ctrl+x discard · esc keep recording"))
	}

	return strings.Join(lines, "\n")
}

func (m Model) footer() string {
	if m.err != nil {
		return m.styles.Error.Render(m.err.Error())
	}
	if n := m.opts.Bridge.Notices(); len(n) > 0 {
		return m.styles.Notice.Render(n[len(n)-1])
	}
	if m.selected >= 0 {
		return m.styles.Footer.Render(help(m.keys.Reply, m.keys.Delete, m.keys.Escape))
	}
	return m.styles.Footer.Render(help(m.keys.Send, m.keys.AttachMenu, m.keys.Emoji, m.keys.Record, m.keys.LoadMore, m.keys.SelectUp, m.keys.Quit))
}

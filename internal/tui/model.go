package tui

import (
	"context"
	"errors"
	"fmt"

	"propchat/internal/composer"
	"propchat/internal/conversation"
	"propchat/internal/logging"
	"propchat/internal/upload"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

// Emojis offered by the emoji picker, selected with 1-8.
var Emojis = []string{"👍", "❤️", "😂", "🙏", "🎉", "👋", "✅", "🔧"}

// Options configure the chat Model.
type Options struct {
	Composer *composer.Composer
	Surface  *conversation.Surface
	Bridge   *Bridge
	// Picker answers attach-menu picks. Nil disables the attach menu.
	Picker upload.Picker
	Title  string
	Styles *Styles
	// Markdown renders message bodies through glamour.
	Markdown bool
	Logger   *zap.Logger
}

// Model is the bubbletea model for one conversation.
type Model struct {
	ctx    context.Context
	opts   Options
	styles Styles
	keys   KeyMap
	log    *zap.Logger

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	rows []conversation.Row
	// selected is a display index into rows, -1 when nothing is selected.
	selected int
	err      error
}

// opResultMsg reports the outcome of a command run off the update loop.
type opResultMsg struct {
	op  string
	err error
}

// New creates the chat model. ctx bounds the commands the model starts.
func New(ctx context.Context, opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	if opts.Bridge == nil {
		opts.Bridge = NewBridge()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryTUI)
	}
	if opts.Title == "" {
		opts.Title = "propchat"
	}

	ta := textarea.New()
	ta.Placeholder = "Message"
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.CharLimit = 4000
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	m := Model{
		ctx:      ctx,
		opts:     opts,
		styles:   styles,
		keys:     DefaultKeyMap(),
		log:      opts.Logger,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		selected: -1,
	}
	m.renderer = m.newRenderer(80)
	return m
}

func (m Model) newRenderer(width int) *glamour.TermRenderer {
	if !m.opts.Markdown {
		return nil
	}
	style := "light"
	if m.styles.Theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.log.Warn("markdown renderer unavailable", zap.Error(err))
		return nil
	}
	return r
}

// Init initializes the chat model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.opts.Bridge.Listen(),
		m.run("refresh", func(ctx context.Context) error { return m.opts.Surface.Refresh(ctx) }),
	)
}

// run executes f off the update loop and reports its outcome.
func (m Model) run(op string, f func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opResultMsg{op: op, err: f(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case wakeMsg:
		m.sync()
		if m.opts.Bridge.takeDismiss() {
			m.textarea.Blur()
		}
		cmds = append(cmds, m.opts.Bridge.Listen())
		return m, tea.Batch(cmds...)

	case opResultMsg:
		m.err = nil
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.log.Info("command failed", zap.String("op", msg.op), zap.Error(msg.err))
			m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.opts.Bridge.Stop()
			return m, tea.Quit
		}
		return m.updateKey(msg)
	}

	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.opts.Composer
	d := c.Draft()

	if d.Recording != composer.RecordingIdle {
		return m.updateRecording(msg, d)
	}
	switch d.Overlay {
	case composer.OverlayAttachMenu:
		return m.updateAttachMenu(msg)
	case composer.OverlayEmojiPicker:
		return m.updateEmojiPicker(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.AttachMenu):
		if m.opts.Picker == nil {
			m.err = errors.New("attachments are not configured")
			return m, nil
		}
		c.ToggleAttachMenu()
		return m, nil

	case key.Matches(msg, m.keys.Emoji):
		c.ToggleEmojiPicker()
		return m, nil

	case key.Matches(msg, m.keys.Record):
		return m, m.run("record", func(ctx context.Context) error { return c.StartRecording(ctx) })

	case key.Matches(msg, m.keys.LoadMore):
		return m, m.run("load more", func(ctx context.Context) error {
			_, err := m.opts.Surface.LoadMore(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", func(ctx context.Context) error { return m.opts.Surface.Refresh(ctx) })

	case key.Matches(msg, m.keys.SelectUp):
		// older messages sit higher on screen
		if m.selected < len(m.rows)-1 {
			m.selected++
		}
		m.renderRows()
		return m, nil

	case key.Matches(msg, m.keys.SelectDown):
		if m.selected >= 0 {
			m.selected--
		}
		m.renderRows()
		return m, nil

	case key.Matches(msg, m.keys.Reply):
		if row, ok := m.selectedRow(); ok {
			c.SetReply(row.Message)
			m.selected = -1
			m.renderRows()
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		id := row.Message.ID
		m.selected = -1
		return m, m.run("delete", func(ctx context.Context) error { return m.opts.Surface.Delete(ctx, id) })

	case key.Matches(msg, m.keys.Unstage):
		if n := len(d.Staged); n > 0 {
			c.RemoveStaged(n - 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		if m.selected >= 0 {
			m.selected = -1
			m.renderRows()
		} else {
			c.ClearReply()
		}
		return m, nil
	}

	return m.updateText(msg)
}

// updateText feeds a key into the input and mirrors the result into the
// composer.
func (m Model) updateText(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.textarea.Focused() {
		m.textarea.Focus()
	}
	before := m.textarea.Value()
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	if after := m.textarea.Value(); after != before {
		m.opts.Composer.SetText(after)
	}
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	_, err := m.opts.Composer.Send(m.ctx)
	if errors.Is(err, composer.ErrNothingToSend) {
		return m, nil
	}
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.opts.Bridge.ClearNotices()
	m.textarea.Reset()
	m.textarea.Focus()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) updateAttachMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var src upload.Source
	switch {
	case key.Matches(msg, m.keys.PickLibrary):
		src = upload.SourceLibrary
	case key.Matches(msg, m.keys.PickCamera):
		src = upload.SourceCamera
	case key.Matches(msg, m.keys.PickDocument):
		src = upload.SourceDocument
	case key.Matches(msg, m.keys.PickLocation):
		src = upload.SourceLocation
	case key.Matches(msg, m.keys.AttachMenu):
		m.opts.Composer.ToggleAttachMenu()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.opts.Composer.CloseOverlays()
		m.textarea.Focus()
		return m, nil
	default:
		return m, nil
	}

	c, picker := m.opts.Composer, m.opts.Picker
	return m, m.run("attach", func(ctx context.Context) error { return c.Attach(ctx, src, picker) })
}

func (m Model) updateEmojiPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Emoji):
		m.opts.Composer.ToggleEmojiPicker()
		m.textarea.Focus()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.opts.Composer.CloseOverlays()
		m.textarea.Focus()
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		i := int(msg.Runes[0] - '1')
		if i >= 0 && i < len(Emojis) {
			m.textarea.InsertString(Emojis[i])
			m.opts.Composer.SetText(m.textarea.Value())
		}
	}
	return m, nil
}

func (m Model) updateRecording(msg tea.KeyMsg, d composer.Draft) (tea.Model, tea.Cmd) {
	c := m.opts.Composer
	switch {
	case key.Matches(msg, m.keys.Record), key.Matches(msg, m.keys.Send):
		return m, m.run("voice", func(ctx context.Context) error { return c.StopRecording(ctx) })
	case key.Matches(msg, m.keys.Cancel):
		if d.Recording == composer.RecordingCancelling {
			return m, m.run("voice", func(context.Context) error { return c.CancelRecording() })
		}
		c.ArmCancel()
	case key.Matches(msg, m.keys.Escape):
		c.DisarmCancel()
	}
	return m, nil
}

func (m Model) selectedRow() (conversation.Row, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return conversation.Row{}, false
	}
	return m.rows[m.selected], true
}

// sync re-reads the surface. The list follows new messages when it was
// already at the bottom or the user just sent.
func (m *Model) sync() {
	m.rows = m.opts.Surface.Rows()
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	follow := m.viewport.AtBottom()
	for _, cue := range m.opts.Bridge.takeCues() {
		if cue == composer.CueSend {
			follow = true
		}
	}
	m.renderRows()
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.textarea.SetWidth(width - 2)
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeHeight, 3)
	if m.opts.Markdown {
		m.renderer = m.newRenderer(bubbleWidth(width) - 4)
	}
	m.ready = true
	m.renderRows()
	m.viewport.GotoBottom()
}

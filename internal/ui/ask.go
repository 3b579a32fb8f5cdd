// Package ui implements the interactive ask console.
//
// The console is a bubbletea program: a single input line, a transcript
// of question/answer exchanges with their sources, and a slash command
// for retrieval stats. All retrieval happens over HTTP against the
// query node; the console holds no engine state of its own.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/pkg/client"
)

// askTimeout bounds one question round trip, generation included.
const askTimeout = 2 * time.Minute

// Querier is the slice of the node client the console needs.
type Querier interface {
	Query(ctx context.Context, req schema.QueryRequest) (*schema.QueryResponse, error)
	Stats(ctx context.Context) (*client.Stats, error)
}

// Option configures the console.
type Option func(*askModel)

// WithStyles overrides the rendering styles.
func WithStyles(s Styles) Option {
	return func(m *askModel) {
		m.styles = s
	}
}

// WithTopK sets the number of ranked sources requested per question.
func WithTopK(k int) Option {
	return func(m *askModel) {
		m.topK = k
	}
}

// WithDocumentID restricts every question to one document.
func WithDocumentID(id string) Option {
	return func(m *askModel) {
		m.documentID = id
	}
}

// Console is the interactive ask loop.
type Console struct {
	model *askModel
}

// NewConsole builds a console around a query-node client.
func NewConsole(querier Querier, opts ...Option) *Console {
	return &Console{model: newAskModel(querier, opts...)}
}

// Run starts the console and blocks until the user quits.
func (c *Console) Run(ctx context.Context) error {
	p := tea.NewProgram(c.model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// exchange is one question/answer round in the transcript.
type exchange struct {
	question string
	answer   string
	sources  []schema.Source
	elapsed  time.Duration
	err      error
}

// Message types for bubbletea.
type answerMsg struct {
	question string
	resp     *schema.QueryResponse
	elapsed  time.Duration
	err      error
}

type statsMsg struct {
	stats *client.Stats
	err   error
}

// askModel is the bubbletea model for the console.
type askModel struct {
	querier Querier
	styles  Styles

	input textinput.Model
	spin  spinner.Model

	history   []exchange
	statsView string

	waiting    bool
	quitting   bool
	width      int
	topK       int
	documentID string
}

func newAskModel(querier Querier, opts ...Option) *askModel {
	ti := textinput.New()
	ti.Placeholder = "ask a question"
	ti.Prompt = "❯ "
	ti.CharLimit = 512
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &askModel{
		querier: querier,
		styles:  DefaultStyles(),
		input:   ti,
		spin:    sp,
		width:   80,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.spin.Style = m.styles.Spinner
	m.input.PromptStyle = m.styles.Prompt
	return m
}

// Init implements tea.Model.
func (m *askModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// Update implements tea.Model.
func (m *askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4

	case answerMsg:
		m.waiting = false
		entry := exchange{question: msg.question, elapsed: msg.elapsed, err: msg.err}
		if msg.resp != nil {
			entry.answer = msg.resp.Answer
			entry.sources = msg.resp.Sources
		}
		m.history = append(m.history, entry)
		return m, nil

	case statsMsg:
		m.waiting = false
		if msg.err != nil {
			m.statsView = m.styles.Error.Render(fmt.Sprintf("stats unavailable: %v", msg.err))
		} else {
			m.statsView = m.renderStats(msg.stats)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit dispatches the current input line.
func (m *askModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	m.input.Reset()
	m.statsView = ""

	switch line {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/stats":
		m.waiting = true
		return m, tea.Batch(m.spin.Tick, m.statsCmd())
	default:
		m.waiting = true
		return m, tea.Batch(m.spin.Tick, m.askCmd(line))
	}
}

func (m *askModel) askCmd(question string) tea.Cmd {
	querier, topK, docID := m.querier, m.topK, m.documentID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()

		start := time.Now()
		resp, err := querier.Query(ctx, schema.QueryRequest{
			Question:   question,
			TopK:       topK,
			DocumentID: docID,
		})
		return answerMsg{question: question, resp: resp, elapsed: time.Since(start), err: err}
	}
}

func (m *askModel) statsCmd() tea.Cmd {
	querier := m.querier
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		stats, err := querier.Stats(ctx)
		return statsMsg{stats: stats, err: err}
	}
}

// View implements tea.Model.
func (m *askModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.styles.Header.Render("ragline ask"))
	if m.documentID != "" {
		b.WriteString(m.styles.Label.Render(fmt.Sprintf("  [document: %s]", m.documentID)))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Hint.Render("enter to ask · /stats for retrieval stats · esc to quit"))
	b.WriteString("\n\n")

	for _, entry := range m.history {
		b.WriteString(m.renderExchange(entry))
		b.WriteString("\n")
	}

	if m.statsView != "" {
		b.WriteString(m.statsView)
		b.WriteString("\n\n")
	}

	if m.waiting {
		b.WriteString(m.spin.View())
		b.WriteString(m.styles.Label.Render(" thinking..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	return b.String()
}

// renderExchange formats one transcript entry.
func (m *askModel) renderExchange(entry exchange) string {
	var b strings.Builder

	b.WriteString(m.styles.Prompt.Render("❯ "))
	b.WriteString(entry.question)
	b.WriteString("\n")

	if entry.err != nil {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("  error: %v", entry.err)))
		b.WriteString("\n")
		return b.String()
	}

	answer := m.styles.Answer.Width(max(m.width-4, 20)).Render(entry.answer)
	for _, line := range strings.Split(answer, "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(entry.sources) > 0 {
		refs := make([]string, 0, len(entry.sources))
		for _, src := range entry.sources {
			refs = append(refs, formatSource(src))
		}
		b.WriteString("  ")
		b.WriteString(m.styles.Source.Render("sources: " + strings.Join(refs, " · ")))
		b.WriteString("\n")
	}

	b.WriteString("  ")
	b.WriteString(m.styles.Hint.Render(entry.elapsed.Round(10 * time.Millisecond).String()))
	b.WriteString("\n")
	return b.String()
}

// renderStats formats the query node's stats document.
func (m *askModel) renderStats(stats *client.Stats) string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("retrieval stats"))
	b.WriteString(m.styles.Label.Render(fmt.Sprintf(" since %s", stats.Since.Format("2006-01-02 15:04"))))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("  queries: %d (%d zero-result)\n",
		stats.TotalQueries, stats.ZeroResultCount))

	if len(stats.MethodCounts) > 0 {
		methods := make([]string, 0, len(stats.MethodCounts))
		for name := range stats.MethodCounts {
			methods = append(methods, name)
		}
		sort.Strings(methods)
		parts := make([]string, 0, len(methods))
		for _, name := range methods {
			parts = append(parts, fmt.Sprintf("%s %d", name, stats.MethodCounts[name]))
		}
		b.WriteString("  methods: ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	if len(stats.TopTerms) > 0 {
		parts := make([]string, 0, len(stats.TopTerms))
		for _, tc := range stats.TopTerms {
			parts = append(parts, fmt.Sprintf("%s (%d)", tc.Term, tc.Count))
		}
		b.WriteString("  top terms: ")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	if len(stats.ZeroResultRecent) > 0 {
		b.WriteString("  recent zero-result: ")
		b.WriteString(strings.Join(stats.ZeroResultRecent, " · "))
		b.WriteString("\n")
	}

	return b.String()
}

// formatSource renders one citation as document::chunk plus page.
func formatSource(src schema.Source) string {
	ref := fmt.Sprintf("%s::%s", src.DocumentID, src.ChunkID)
	if src.Page != nil {
		ref += fmt.Sprintf(" p.%d", *src.Page)
	}
	return ref
}

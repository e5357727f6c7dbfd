package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/radamsa-go"
	"github.com/wippyai/radamsa-go/internal/config"
	"github.com/wippyai/radamsa-go/internal/corpus"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// previewLimit caps how much of a case is rendered.
const previewLimit = 2048

type modelState int

const (
	stateBrowse modelState = iota
	stateEditSeed
)

type interactiveModel struct {
	err      error
	m        *radamsa.Mutator
	input    []byte
	output   []byte
	seedIn   textinput.Model
	mode     corpus.Mode
	maxSize  int
	headroom int
	seed     uint32
	state    modelState
	implicit bool
}

func newInteractiveModel(m *radamsa.Mutator, input []byte, cfg config.Config) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "seed: "
	ti.Placeholder = "uint32"
	ti.CharLimit = 10
	ti.Width = 12

	model := &interactiveModel{
		m:        m,
		input:    input,
		seedIn:   ti,
		mode:     corpusMode(cfg.Mode),
		maxSize:  cfg.MaxSize,
		headroom: cfg.Headroom,
	}
	if cfg.Seed != nil {
		model.seed = *cfg.Seed
	} else {
		model.seed = m.Seeds().Next()
		model.implicit = true
	}
	return model
}

type caseMsg struct {
	data []byte
	seed uint32
}

func (im *interactiveModel) Init() tea.Cmd {
	return im.produce(im.seed)
}

// produce runs one case with an explicit seed so stepping back and forth
// shows the same output for the same seed.
func (im *interactiveModel) produce(seed uint32) tea.Cmd {
	m, input, mode, maxSize, headroom := im.m, im.input, im.mode, im.maxSize, im.headroom
	return func() tea.Msg {
		if mode == corpus.Mutate {
			buf := make([]byte, len(input)+headroom)
			copy(buf, input)
			n := m.Mutate(buf, radamsa.WithSeed(seed))
			return caseMsg{data: buf[:n], seed: seed}
		}
		return caseMsg{data: m.Generate(input, radamsa.WithSeed(seed), radamsa.WithMaxSize(maxSize)), seed: seed}
	}
}

func (im *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if im.state == stateEditSeed {
			return im.updateSeedInput(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return im, tea.Quit

		case "right", "l":
			im.seed++
			im.implicit = false
			return im, im.produce(im.seed)

		case "left", "h":
			im.seed--
			im.implicit = false
			return im, im.produce(im.seed)

		case "n":
			im.seed = im.m.Seeds().Next()
			im.implicit = true
			return im, im.produce(im.seed)

		case "m":
			if im.mode == corpus.Mutate {
				im.mode = corpus.Generate
			} else {
				im.mode = corpus.Mutate
			}
			return im, im.produce(im.seed)

		case "s":
			im.state = stateEditSeed
			im.err = nil
			im.seedIn.SetValue("")
			return im, im.seedIn.Focus()
		}

	case caseMsg:
		if msg.seed == im.seed {
			im.output = msg.data
		}
	}

	return im, nil
}

func (im *interactiveModel) updateSeedInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return im, tea.Quit

	case "esc":
		im.state = stateBrowse
		im.seedIn.Blur()
		return im, nil

	case "enter":
		v, err := strconv.ParseUint(strings.TrimSpace(im.seedIn.Value()), 10, 32)
		im.state = stateBrowse
		im.seedIn.Blur()
		if err != nil {
			im.err = fmt.Errorf("invalid seed %q", im.seedIn.Value())
			return im, nil
		}
		im.seed = uint32(v)
		im.implicit = false
		return im, im.produce(im.seed)
	}

	var cmd tea.Cmd
	im.seedIn, cmd = im.seedIn.Update(msg)
	return im, cmd
}

func (im *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("radamsa"))
	b.WriteString(" ")
	b.WriteString(modeStyle.Render(im.mode.String()))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("input  "))
	b.WriteString(preview(im.input))
	b.WriteString("\n")

	seedNote := ""
	if im.implicit {
		seedNote = " (implicit)"
	}
	b.WriteString(labelStyle.Render("seed   "))
	fmt.Fprintf(&b, "%d%s\n", im.seed, seedNote)

	b.WriteString(labelStyle.Render("length "))
	fmt.Fprintf(&b, "%d\n\n", len(im.output))

	b.WriteString(resultStyle.Render(preview(im.output)))
	b.WriteString("\n\n")

	if im.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", im.err)))
		b.WriteString("\n\n")
	}

	if im.state == stateEditSeed {
		b.WriteString(im.seedIn.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter apply • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("←/→ seed • n next implicit • s set seed • m toggle mode • q quit"))
	}

	return b.String()
}

func preview(data []byte) string {
	if len(data) > previewLimit {
		return strconv.Quote(string(data[:previewLimit])) + fmt.Sprintf(" … %d more bytes", len(data)-previewLimit)
	}
	return strconv.Quote(string(data))
}

func runInteractive(m *radamsa.Mutator, input []byte, cfg config.Config) error {
	p := tea.NewProgram(newInteractiveModel(m, input, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

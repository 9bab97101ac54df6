package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/nfcbox/internal/formatter"
	"github.com/desertthunder/nfcbox/internal/library"
	"github.com/desertthunder/nfcbox/internal/media"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
	"github.com/desertthunder/nfcbox/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	InputView
	PickerView
	ConfirmView
	UploadView
)

type inputPurpose int

const (
	inputRename inputPurpose = iota
	inputUpload
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	engine *tasks.LibraryEngine
	logger *log.Logger
	view   ViewState
	width  int
	height int

	table   table.Model
	rows    []models.DisplayRow
	sort    models.SortState
	loading bool
	status  string
	err     error

	input   textinput.Model
	purpose inputPurpose
	target  string

	picker list.Model
	tag    string

	prompt    string
	onConfirm tea.Cmd

	bar          progress.Model
	update       tasks.ProgressUpdate
	progressChan chan tasks.ProgressUpdate
	done         chan uploadComplete

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model over engine.
func NewModel(ctx context.Context, engine *tasks.LibraryEngine, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	t := table.New(table.WithFocused(true), table.WithHeight(10))
	t.SetStyles(styles.tableStyles())

	ti := textinput.New()
	ti.CharLimit = 512

	m := &Model{
		ctx:     ctx,
		engine:  engine,
		logger:  logger,
		view:    LibraryView,
		table:   t,
		input:   ti,
		bar:     progress.New(progress.WithDefaultGradient()),
		loading: true,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.setView(engine.View())
	return m
}

// Init loads the library from the device.
func (m *Model) Init() tea.Cmd {
	return m.refresh()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case LibraryView:
			return m.handleLibraryKeys(msg)
		case InputView:
			return m.handleInputKeys(msg)
		case PickerView:
			return m.handlePickerKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLibraryLoaded:
		data := msg.data.(libraryLoaded)
		m.loading = false
		m.setView(data.view)
		m.err = data.err
		if data.err == nil {
			m.status = fmt.Sprintf("%d files", len(m.rows))
		}

	case MsgTagRead:
		data := msg.data.(tagRead)
		if data.err != nil {
			m.fail(data.err)
			return m, nil
		}
		m.tag = data.tag
		m.openPicker()

	case MsgProgressUpdate:
		m.update = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgUploadComplete:
		data := msg.data.(uploadComplete)
		m.progressChan = nil
		m.done = nil
		m.view = LibraryView
		m.setView(m.engine.View())
		complete := data.batch != nil && data.batch.Failure == nil && len(data.batch.Uploaded()) == len(data.batch.Files)
		if data.err != nil && !complete {
			m.fail(data.err)
			return m, nil
		}
		m.err = nil
		if data.batch != nil {
			m.status = fmt.Sprintf("Uploaded %d files", len(data.batch.Files))
		}
		if data.err != nil {
			m.logger.Warn("library refresh failed after upload", "error", data.err)
			m.status += " (library refresh failed, press r to retry)"
		}

	case MsgActionComplete:
		data := msg.data.(actionComplete)
		m.loading = false
		m.setView(m.engine.View())
		if data.err != nil {
			m.fail(data.err)
			return m, nil
		}
		m.err = nil
		m.status = data.status

	case MsgMappingChanged:
		plan := msg.data.(tasks.MappingPlan)
		m.loading = false
		m.setView(m.engine.View())
		m.confirm(plan.Prompt(), m.assign(plan.TagID, plan.Song, plan.Prompt()))
	}
	return m, nil
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, selected := m.selected()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.sortName):
		m.setView(m.engine.Sort(models.ColumnName))
		return m, nil
	case key.Matches(msg, m.keys.sortSize):
		m.setView(m.engine.Sort(models.ColumnSize))
		return m, nil
	case key.Matches(msg, m.keys.sortDate):
		m.setView(m.engine.Sort(models.ColumnDate))
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		m.status = ""
		return m, m.refresh()
	case key.Matches(msg, m.keys.upload):
		return m, m.openInput(inputUpload, "", "song.mp3 other.mp3")
	case key.Matches(msg, m.keys.rename) && selected:
		return m, m.openInput(inputRename, row.Name, row.Name)
	case key.Matches(msg, m.keys.remove) && selected:
		m.confirm(tasks.DeletePrompt(row.Name), m.deleteFile(row.Name))
		return m, nil
	case key.Matches(msg, m.keys.assign):
		m.err = nil
		m.status = "Reading tag..."
		return m, m.readTag()
	case key.Matches(msg, m.keys.unmap) && selected:
		if !row.Mapped {
			m.status = fmt.Sprintf("%s has no tag mapping", row.Name)
			return m, nil
		}
		m.confirm(tasks.RemovePrompt(row.Name), m.unmapSong(row.Name))
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.back()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		switch m.purpose {
		case inputRename:
			if err := tasks.ValidateRename(m.target, value); err != nil {
				m.err = err
				return m, nil
			}
			m.view = LibraryView
			m.loading = true
			return m, m.renameFile(m.target, value)
		case inputUpload:
			files, err := media.ProbeAll(strings.Fields(value))
			if err != nil {
				m.err = err
				return m, nil
			}
			return m, m.startUpload(files)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc", "q":
		m.back()
		return m, nil
	case "enter":
		item, _ := m.picker.SelectedItem().(songItem)
		plan, err := tasks.PlanFrom(m.engine.View().Mappings(), m.tag, item.Song())
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil

		switch {
		case plan.NoOp():
			m.back()
			m.status = fmt.Sprintf("Tag %s is already mapped to %s", plan.TagID, plan.Song)
			return m, nil
		case plan.Conflict():
			m.confirm(plan.Prompt(), m.assign(plan.TagID, plan.Song, plan.Prompt()))
			return m, nil
		default:
			m.view = LibraryView
			m.loading = true
			return m, m.assign(plan.TagID, plan.Song, "")
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		cmd := m.onConfirm
		m.onConfirm = nil
		m.view = LibraryView
		m.loading = true
		return m, cmd
	case key.Matches(msg, m.keys.no):
		m.onConfirm = nil
		m.back()
		m.status = "Cancelled"
		return m, nil
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case LibraryView:
		m.table, cmd = m.table.Update(msg)
	case InputView:
		m.input, cmd = m.input.Update(msg)
	case PickerView:
		m.picker, cmd = m.picker.Update(msg)
	}
	return m, cmd
}

func (m *Model) back() {
	m.view = LibraryView
	m.err = nil
	m.status = ""
	m.input.Blur()
}

func (m *Model) fail(err error) {
	m.view = LibraryView
	m.loading = false
	m.status = ""
	m.err = err
	if !errors.Is(err, shared.ErrAborted) {
		m.logger.Error("operation failed", "error", err)
	}
}

func (m *Model) confirm(prompt string, onYes tea.Cmd) {
	m.prompt = prompt
	m.onConfirm = onYes
	m.err = nil
	m.view = ConfirmView
}

func (m *Model) openInput(purpose inputPurpose, target, value string) tea.Cmd {
	m.purpose = purpose
	m.target = target
	m.err = nil
	m.input.SetValue(value)
	m.input.CursorEnd()
	switch purpose {
	case inputRename:
		m.input.Placeholder = "new-name.mp3"
	case inputUpload:
		m.input.Placeholder = "paths to .mp3 files, separated by spaces"
		m.input.SetValue("")
	}
	m.view = InputView
	return m.input.Focus()
}

func (m *Model) openPicker() {
	m.picker = list.New(songItems(m.engine.View().Rows()), list.NewDefaultDelegate(), 0, 0)
	m.picker.Title = fmt.Sprintf("Map tag %s to", m.tag)
	m.picker.SetSize(max(m.width-4, 20), max(m.height-8, 10))
	if row, ok := m.selected(); ok {
		for i, it := range m.picker.Items() {
			if it.(songItem).row.Name == row.Name {
				m.picker.Select(i)
				break
			}
		}
	}
	m.status = ""
	m.err = nil
	m.view = PickerView
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetHeight(max(height-8, 3))
	m.table.SetColumns(m.columns())
	m.bar.Width = max(min(width-8, 80), 10)
	m.input.Width = max(width-8, 20)
	if m.view == PickerView {
		m.picker.SetSize(max(width-4, 20), max(height-8, 10))
	}
}

// setView loads view's rows into the table, keeping the cursor in range.
func (m *Model) setView(view library.View) {
	m.rows = view.Rows()
	m.sort = view.SortState()
	m.table.SetColumns(m.columns())

	rows := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		rows[i] = table.Row{r.Name, r.SizeDisplay, r.DateDisplay, formatter.TagDisplay(r)}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *Model) columns() []table.Column {
	const sizeW, dateW, tagW = 10, 18, 16
	nameW := max(m.width-sizeW-dateW-tagW-10, 24)

	title := func(label string, col models.Column) string {
		if m.sort.Column != col {
			return label
		}
		if m.sort.Ascending {
			return label + " ▲"
		}
		return label + " ▼"
	}

	return []table.Column{
		{Title: title("Name", models.ColumnName), Width: nameW},
		{Title: title("Size", models.ColumnSize), Width: sizeW},
		{Title: title("Date", models.ColumnDate), Width: dateW},
		{Title: "Tag", Width: tagW},
	}
}

func (m *Model) selected() (models.DisplayRow, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return models.DisplayRow{}, false
	}
	return m.rows[i], true
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		view, err := m.engine.Refresh(m.ctx)
		return libraryLoadedMsg(view, err)
	}
}

func (m *Model) readTag() tea.Cmd {
	return func() tea.Msg {
		tag, err := m.engine.ReadTag(m.ctx)
		return tagReadMsg(tag, err)
	}
}

func (m *Model) deleteFile(name string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.engine.Delete(m.ctx, name, tasks.AlwaysConfirm)
		return actionCompleteMsg(fmt.Sprintf("Deleted %s", name), err)
	}
}

func (m *Model) renameFile(oldName, newName string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.engine.Rename(m.ctx, oldName, newName)
		status := fmt.Sprintf("Renamed %s to %s", oldName, newName)
		if res.MappingsUpdated {
			status += " (tag mappings updated)"
		}
		return actionCompleteMsg(status, err)
	}
}

// assign runs the mapping with the overwrite question already answered, if any. When the
// device shows a different existing mapping, the operator is asked about that one instead.
func (m *Model) assign(tag, song, confirmed string) tea.Cmd {
	confirm := tasks.NeverConfirm
	if confirmed != "" {
		confirm = tasks.ConfirmPrompt(confirmed)
	}
	return func() tea.Msg {
		plan, outcome, err := m.engine.Assign(m.ctx, tag, song, confirm)
		if errors.Is(err, shared.ErrAborted) && plan.Conflict() && plan.Prompt() != confirmed {
			return mappingChangedMsg(plan)
		}
		status := fmt.Sprintf("Tag %s mapped to %s", tag, song)
		if outcome == tasks.MappingUnchanged {
			status = fmt.Sprintf("Tag %s unchanged", tag)
		}
		return actionCompleteMsg(status, err)
	}
}

func (m *Model) unmapSong(name string) tea.Cmd {
	return func() tea.Msg {
		mapping, err := m.engine.UnmapSong(m.ctx, name, tasks.AlwaysConfirm)
		return actionCompleteMsg(fmt.Sprintf("Removed tag %s from %s", mapping.TagID, name), err)
	}
}

func (m *Model) startUpload(files []models.FileBlob) tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan uploadComplete, 1)
	m.update = tasks.ProgressUpdate{Total: len(files), Message: "Starting upload..."}
	m.err = nil
	m.view = UploadView
	m.input.Blur()

	progressChan, done := m.progressChan, m.done
	go func() {
		batch, err := m.engine.Upload(m.ctx, files, progressChan)
		done <- uploadComplete{batch: batch, err: err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		if progressChan == nil {
			return uploadCompleteMsg(nil, nil)
		}
		update, ok := <-progressChan
		if !ok {
			r := <-done
			return uploadCompleteMsg(r.batch, r.err)
		}
		return progressUpdateMsg(update)
	}
}

// overall returns batch progress in [0, 1] for u.
func overall(u tasks.ProgressUpdate) float64 {
	if u.Total <= 0 {
		return 0
	}
	switch u.Phase {
	case tasks.UploadDone, tasks.Refresh:
		return 1
	case tasks.UploadFileDone:
		return float64(u.Step) / float64(u.Total)
	case tasks.UploadBytes:
		return (float64(u.Step-1) + u.Fraction()) / float64(u.Total)
	default:
		return float64(max(u.Step-1, 0)) / float64(u.Total)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LibraryView:
		return m.renderLibrary()
	case InputView:
		return m.renderInput()
	case PickerView:
		return m.renderPicker()
	case ConfirmView:
		return m.renderConfirm()
	case UploadView:
		return m.renderUpload()
	default:
		return ""
	}
}

func (m *Model) renderLibrary() string {
	title := styles.title.Render(fmt.Sprintf("NFC Jukebox • sorted by %s", m.sort))

	body := m.table.View()
	if len(m.rows) == 0 && !m.loading {
		body = styles.help.Render("No files on the device. Press a to upload.")
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n%s", title, body, m.renderStatus(), m.help.View(m.keys))
}

func (m *Model) renderStatus() string {
	switch {
	case m.loading:
		return styles.help.Render("Loading...")
	case m.err != nil:
		return renderError(m.err)
	case m.status != "":
		return styles.ok.Render(m.status)
	default:
		return ""
	}
}

func renderError(err error) string {
	var failure *models.UploadFailure
	switch {
	case errors.Is(err, shared.ErrAborted):
		return styles.warn.Render("Cancelled")
	case errors.Is(err, shared.ErrFileInUse):
		return styles.err.Render("File is mapped to a tag. Remove its mappings first.")
	case errors.Is(err, shared.ErrFileExists):
		return styles.err.Render("A file with that name already exists.")
	case errors.Is(err, shared.ErrNoTag):
		return styles.warn.Render("No tag on the reader. Hold a tag on the reader and press m again.")
	case errors.As(err, &failure):
		return styles.err.Render(failure.Error())
	default:
		return styles.err.Render(fmt.Sprintf("Error: %v", err))
	}
}

func (m *Model) renderInput() string {
	var title string
	switch m.purpose {
	case inputRename:
		title = fmt.Sprintf("Rename %s", m.target)
	case inputUpload:
		title = "Upload files"
	}

	var errLine string
	if m.err != nil {
		errLine = "\n" + renderError(m.err)
	}

	submit := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit"))
	helpView := m.help.ShortHelpView([]key.Binding{submit, m.keys.back})
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", styles.title.Render(title), m.input.View(), errLine, helpView)
}

func (m *Model) renderPicker() string {
	var errLine string
	if m.err != nil {
		errLine = renderError(m.err)
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n%s\n%s", m.picker.View(), errLine, helpView)
}

func (m *Model) renderConfirm() string {
	prompt := styles.warn.Render(m.prompt)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n\n%s", prompt, helpView)
}

func (m *Model) renderUpload() string {
	title := styles.title.Render("Uploading")
	step := fmt.Sprintf("File %d of %d", max(m.update.Step, 1), m.update.Total)
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, step, m.bar.ViewAs(overall(m.update)), m.update.Message)
}

// Package terminal plays games in a text terminal using tcell. Two pixel
// rows are drawn per character cell with half blocks in true color.
package terminal

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/gbplus/gbplus/backend"
	"github.com/valerio/gbplus/gbplus/backend/terminal/render"
	"github.com/valerio/gbplus/gbplus/input"
	"github.com/valerio/gbplus/gbplus/video"
)

const (
	width  = video.Width
	height = video.Height

	minLogWidth = 20
	logCapacity    = 200

	// keyTimeout is how long a key counts as held after its last press or
	// repeat, slightly longer than a typical key repeat interval. Terminals
	// do not report key releases.
	keyTimeout = 100 * time.Millisecond
)

// Option configures a terminal backend.
type Option func(*Backend)

// WithScreen draws on screen instead of the controlling terminal.
func WithScreen(screen tcell.Screen) Option {
	return func(t *Backend) { t.screen = screen }
}

// WithClock replaces the time source of the key timeout.
func WithClock(now func() time.Time) Option {
	return func(t *Backend) { t.now = now }
}

// WithSnapshotDir is where F12 snapshots are written. The default is the
// working directory.
func WithSnapshotDir(dir string) Option {
	return func(t *Backend) { t.snapshotDir = dir }
}

// Backend implements the Backend interface using tcell for terminal rendering
type Backend struct {
	screen      tcell.Screen
	now         func() time.Time
	config      backend.Config
	logBuffer   *render.LogBuffer
	logLevel    *slog.LevelVar
	snapshotDir string
	signals     chan os.Signal

	eventQueue []input.Event                // non-game events since the last Update
	keyStates  map[input.Action]time.Time // last press or repeat of each held key
	activeKeys map[input.Action]bool      // keys reported held by the last Update

	currentFrame *image.RGBA
	status       string
	scale        int
}

// New creates a new terminal backend. Its log buffer starts capturing
// records as soon as Logger is used.
func New(opts ...Option) *Backend {
	t := &Backend{
		now:        time.Now,
		logBuffer:  render.NewLogBuffer(logCapacity),
		logLevel:   new(slog.LevelVar),
		keyStates:  make(map[input.Action]time.Time),
		activeKeys: make(map[input.Action]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Logger returns a logger that writes to the on-screen log panel.
func (t *Backend) Logger() *slog.Logger {
	return slog.New(render.NewHandler(t.logBuffer, slog.LevelDebug))
}

// SetStatus sets the text shown in the title bar next to the game name.
func (t *Backend) SetStatus(status string) {
	t.status = status
}

// Init initializes the terminal backend
func (t *Backend) Init(config backend.Config) error {
	t.config = config
	t.scale = max(config.Scale, 1)

	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
		t.screen = screen
	}
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	t.signals = make(chan os.Signal, 1)
	signal.Notify(t.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	config.Log().Info("Terminal backend initialized", "title", config.Title)
	return nil
}

// Update renders a frame and processes events
func (t *Backend) Update(frame *image.RGBA) ([]input.Event, error) {
	now := t.now()

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev, now)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	select {
	case sig := <-t.signals:
		t.config.Log().Info("Signal received", "signal", sig)
		t.eventQueue = append(t.eventQueue, input.Event{Action: input.EmulatorQuit, Type: input.Press})
	default:
	}

	events := t.gameEvents(now)
	events = append(events, t.eventQueue...)
	t.eventQueue = nil

	t.currentFrame = frame
	t.render(frame)
	t.screen.Show()

	return events, nil
}

// gameEvents turns the key timestamps into Press, Hold and Release events.
func (t *Backend) gameEvents(now time.Time) []input.Event {
	var events []input.Event
	active := make(map[input.Action]bool)

	for act, lastPressed := range t.keyStates {
		if now.Sub(lastPressed) >= keyTimeout {
			delete(t.keyStates, act)
			continue
		}
		active[act] = true
		if t.activeKeys[act] {
			events = append(events, input.Event{Action: act, Type: input.Hold})
		} else {
			events = append(events, input.Event{Action: act, Type: input.Press})
		}
	}

	for act := range t.activeKeys {
		if !active[act] {
			events = append(events, input.Event{Action: act, Type: input.Release})
		}
	}

	t.activeKeys = active
	return events
}

// Cleanup cleans up terminal resources
func (t *Backend) Cleanup() error {
	if t.signals != nil {
		signal.Stop(t.signals)
	}
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

// HandleAction processes backend-specific actions
func (t *Backend) HandleAction(act input.Action) {
	switch act {
	case input.EmulatorSnapshot:
		t.takeSnapshot()
	case input.DebugLogLevelIncrease:
		t.changeLogLevel(-4)
	case input.DebugLogLevelDecrease:
		t.changeLogLevel(4)
	}
}

// LogLevel returns the level of the log panel filter.
func (t *Backend) LogLevel() slog.Level {
	return t.logLevel.Level()
}

func (t *Backend) takeSnapshot() {
	if t.currentFrame == nil {
		t.config.Log().Warn("No frame data available for snapshot")
		return
	}
	name := fmt.Sprintf("gbplus_snapshot_%s.png", t.now().Format("20060102_150405"))
	path := filepath.Join(t.snapshotDir, name)
	if err := backend.SavePNG(t.currentFrame, path); err != nil {
		t.config.Log().Error("Failed to save snapshot", "error", err)
		return
	}
	t.config.Log().Info("Snapshot saved", "path", path)
}

// changeLogLevel moves the panel filter by delta, clamped to Debug..Error.
func (t *Backend) changeLogLevel(delta slog.Level) {
	old := t.logLevel.Level()
	level := min(max(old+delta, slog.LevelDebug), slog.LevelError)
	if level != old {
		t.logLevel.Set(level)
		t.config.Log().Info("Log filter changed", "from", old, "to", level)
	}
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey, now time.Time) {
	var (
		act input.Action
		ok  bool
	)
	if ev.Key() == tcell.KeyRune {
		act, ok = runeMapping[ev.Rune()]
	} else {
		act, ok = keyMapping[ev.Key()]
	}
	if !ok {
		return
	}

	if input.GetInfo(act).Category != input.CategoryGameInput {
		t.eventQueue = append(t.eventQueue, input.Event{Action: act, Type: input.Press})
		return
	}

	// Terminals only report the latest key, so directions are exclusive.
	if input.IsDPad(act) {
		delete(t.keyStates, input.GBDPadUp)
		delete(t.keyStates, input.GBDPadDown)
		delete(t.keyStates, input.GBDPadLeft)
		delete(t.keyStates, input.GBDPadRight)
	}
	t.keyStates[act] = now
}

// tcellKeyNames converts tcell keys to key names used in default mappings
var tcellKeyNames = map[tcell.Key]string{
	tcell.KeyEnter:      "Enter",
	tcell.KeyBackspace:  "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
	tcell.KeyEscape:     "Escape",
	tcell.KeyF5:         "F5",
	tcell.KeyF9:         "F9",
	tcell.KeyF12:        "F12",
}

func buildKeyMapping() map[tcell.Key]input.Action {
	mapping := make(map[tcell.Key]input.Action)
	for key, name := range tcellKeyNames {
		if act, ok := input.GetDefaultMapping(name); ok {
			mapping[key] = act
		}
	}
	mapping[tcell.KeyCtrlC] = input.EmulatorQuit
	return mapping
}

// buildRuneMapping maps every single character key name, plus space.
func buildRuneMapping() map[rune]input.Action {
	mapping := make(map[rune]input.Action)
	for name, act := range input.DefaultKeyMap {
		if r := []rune(name); len(r) == 1 {
			mapping[r[0]] = act
		}
	}
	if act, ok := input.GetDefaultMapping("Space"); ok {
		mapping[' '] = act
	}
	return mapping
}

var (
	keyMapping  = buildKeyMapping()
	runeMapping = buildRuneMapping()
)

// gameArea returns the size of the bordered screen in cells. Each cell is
// one pixel column wide and two pixel rows tall at scale 1.
func (t *Backend) gameArea() (w, h int) {
	scale := max(t.scale, 1)
	return width*scale + 2, (height*scale+1)/2 + 2
}

const helpText = " arrows/WASD move  Z/X A/B  Enter/Bksp start/select  Space pause  F5/F9 save/load  P palette  1-4 mute  F12 snapshot  Q quit "

func (t *Backend) render(frame *image.RGBA) {
	termWidth, termHeight := t.screen.Size()
	gameAreaWidth, gameAreaHeight := t.gameArea()
	t.screen.Clear()

	if termWidth < gameAreaWidth || termHeight < gameAreaHeight {
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", gameAreaWidth, gameAreaHeight)
		t.drawText(0, termHeight/2, termWidth, msg, tcell.StyleDefault.Foreground(tcell.ColorRed))
		return
	}

	t.drawBorder()
	t.drawGameBoy(frame)

	if logWidth := termWidth - gameAreaWidth - 1; logWidth >= minLogWidth {
		t.drawLogs(gameAreaWidth+1, 0, logWidth, termHeight-1)
	}
	if termHeight > gameAreaHeight {
		t.drawText(0, termHeight-1, termWidth, helpText, tcell.StyleDefault.Foreground(tcell.ColorGray))
	}
}

func (t *Backend) drawBorder() {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	w, h := t.gameArea()
	right, bottom := w-1, h-1
	for x := 1; x < right; x++ {
		t.screen.SetContent(x, 0, '─', nil, style)
		t.screen.SetContent(x, bottom, '─', nil, style)
	}
	for y := 1; y < bottom; y++ {
		t.screen.SetContent(0, y, '│', nil, style)
		t.screen.SetContent(right, y, '│', nil, style)
	}
	t.screen.SetContent(0, 0, '┌', nil, style)
	t.screen.SetContent(right, 0, '┐', nil, style)
	t.screen.SetContent(0, bottom, '└', nil, style)
	t.screen.SetContent(right, bottom, '┘', nil, style)

	title := " " + t.config.Title + " "
	if t.status != "" {
		title += "[" + t.status + "] "
	}
	t.drawText(2, 0, right-3, title, tcell.StyleDefault.Foreground(tcell.ColorYellow))
}

func (t *Backend) drawGameBoy(frame *image.RGBA) {
	if frame == nil {
		return
	}
	scale := max(t.scale, 1)
	if scale == 1 {
		for y := 0; y < height; y += 2 {
			for x := 0; x < width; x++ {
				t.screen.SetContent(x+1, y/2+1, render.HalfBlock, nil, render.Cell(frame, x, y))
			}
		}
		return
	}

	rows := (height*scale + 1) / 2
	for cy := 0; cy < rows; cy++ {
		top, bottom := 2*cy/scale, (2*cy+1)/scale
		for cx := 0; cx < width*scale; cx++ {
			x := cx / scale
			style := tcell.StyleDefault.Foreground(render.Color(frame, x, top))
			if bottom < height {
				style = style.Background(render.Color(frame, x, bottom))
			} else {
				style = style.Background(tcell.ColorBlack)
			}
			t.screen.SetContent(cx+1, cy+1, render.HalfBlock, nil, style)
		}
	}
}

func (t *Backend) drawLogs(startX, startY, width, rows int) {
	title := fmt.Sprintf(" Logs [%s] (-/+ filter) ", t.logLevel.Level())
	t.drawText(startX, startY, width, title, tcell.StyleDefault.Foreground(tcell.ColorYellow))

	styles := map[slog.Level]tcell.Style{
		slog.LevelDebug: tcell.StyleDefault.Foreground(tcell.ColorGray),
		slog.LevelInfo:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
		slog.LevelWarn:  tcell.StyleDefault.Foreground(tcell.ColorYellow),
		slog.LevelError: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	}

	entries := t.logBuffer.Recent(rows-1, t.logLevel.Level())
	for i, entry := range entries {
		style, ok := styles[entry.Level]
		if !ok {
			style = styles[slog.LevelInfo]
		}
		text := render.FormatLogEntry(entry)
		if len([]rune(text)) > width && width > 3 {
			text = string([]rune(text)[:width-3]) + "..."
		}
		t.drawText(startX, startY+1+i, width, text, style)
	}
}

func (t *Backend) drawText(x, y, maxWidth int, text string, style tcell.Style) {
	i := 0
	for _, ch := range text {
		if i >= maxWidth {
			return
		}
		t.screen.SetContent(x+i, y, ch, nil, style)
		i++
	}
}

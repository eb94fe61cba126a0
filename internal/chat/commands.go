package chat

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

const maxSignalLines = 10

// Reply is the answer to one command.
type Reply struct {
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
	// OK is false when the command failed.
	OK bool
}

type handler func(ctx context.Context, args string) Reply

type command struct {
	name    string
	usage   string
	help    string
	handler handler
}

// Commands renders model reads and runs operator commands for the chat bot.
type Commands struct {
	model     *model.Model
	control   *control.Service
	announcer control.Announcer
	topK      int
	now       func() time.Time
	byName    map[string]command
	ordered   []command
}

func NewCommands(m *model.Model, ctrl *control.Service, announcer control.Announcer, topK int) *Commands {
	if topK <= 0 {
		topK = 5
	}

	c := &Commands{
		model:     m,
		control:   ctrl,
		announcer: announcer,
		topK:      topK,
		now:       time.Now,
		byName:    map[string]command{},
		ordered:   nil,
	}

	c.register("start", "", "Show the main menu", c.start)
	c.register("help", "", "List commands", c.help)
	c.register("status", "", "System and engine status", c.status)
	c.register("trades", "", "Open trades", c.trades)
	c.register("pnl", "", "Profit and loss", c.pnl)
	c.register("conditions", "[k]", "Top k symbols by rule progress", c.conditions)
	c.register("signals", "", "Latest readiness signals", c.signals)
	c.register("forcetrade", "PAIR", "Open a long market entry with the base stake", c.forceTrade)
	c.register("forceexit", "ID|all", "Close a trade or every trade", c.forceExit)
	c.register("emergency_stop", "", "Disable auto-trading and stop the engine", c.emergencyStop)
	c.register("startbot", "", "Start the engine", c.startEngine)
	c.register("stopbot", "", "Stop the engine", c.stopEngine)
	c.register("autotrading", "", "Toggle news-driven auto-trading", c.toggle)
	c.register("refresh", "", "Run an extra poll now", c.refresh)
	c.register("notify", "TEXT", "Send a message through every channel", c.notify)

	return c
}

func (c *Commands) register(name, usage, help string, h handler) {
	cmd := command{name: name, usage: usage, help: help, handler: h}
	c.byName[name] = cmd
	c.ordered = append(c.ordered, cmd)
}

// Names lists the registered commands in menu order.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.ordered))
	for _, cmd := range c.ordered {
		names = append(names, cmd.name)
	}

	return names
}

// Execute runs the named command. Unknown names answer the help text.
func (c *Commands) Execute(ctx context.Context, name, args string) Reply {
	cmd, ok := c.byName[strings.ToLower(strings.TrimPrefix(name, "/"))]
	if !ok {
		reply := c.help(ctx, "")
		reply.Text = "Unknown command /" + name + "\n\n" + reply.Text
		reply.OK = false

		return reply
	}

	return cmd.handler(ctx, strings.TrimSpace(args))
}

// Callback maps inline button data to a command. "cmd:<name>" runs the
// command without arguments and "trade:<pair>" opens a forced entry.
func (c *Commands) Callback(ctx context.Context, data string) (string, Reply) {
	kind, value, _ := strings.Cut(data, ":")

	switch kind {
	case "cmd":
		return value, c.Execute(ctx, value, "")
	case "trade":
		return "forcetrade", c.Execute(ctx, "forcetrade", value)
	default:
		return "unknown", failure(errors.Newf(errors.ErrCodeInvalidParameter, "unknown button %q", data))
	}
}

func (c *Commands) start(_ context.Context, _ string) Reply {
	return Reply{
		Text:     "Monitor bot ready. Pick an action or send /help.",
		Keyboard: menu(),
		OK:       true,
	}
}

func (c *Commands) help(_ context.Context, _ string) Reply {
	var b strings.Builder

	b.WriteString("Commands:\n")

	for _, cmd := range c.ordered {
		usage := "/" + cmd.name
		if cmd.usage != "" {
			usage += " " + cmd.usage
		}

		fmt.Fprintf(&b, "%s  %s\n", usage, cmd.help)
	}

	return Reply{Text: strings.TrimRight(b.String(), "\n"), Keyboard: nil, OK: true}
}

func (c *Commands) status(_ context.Context, _ string) Reply {
	d := c.model.Snapshot()

	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", d.Status)
	fmt.Fprintf(&b, "Engine: %s", reachable(d.EngineReachable))

	if d.System.EngineVersion != "" {
		fmt.Fprintf(&b, " (v%s)", d.System.EngineVersion)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Auto-trading: %s\n", onOff(d.AutoTradingEnabled))
	fmt.Fprintf(&b, "CPU %.1f%%  Memory %.1f%%  Disk %.1f%%\n",
		float64(d.System.CPUPercent), float64(d.System.MemoryPercent), float64(d.System.DiskPercent))

	for _, p := range d.System.Processes {
		fmt.Fprintf(&b, "%s: %s\n", p.Name, runningState(p.Running))
	}

	if d.LastUpdate != nil {
		fmt.Fprintf(&b, "Last update: %s ago\n", c.now().Sub(*d.LastUpdate).Round(time.Second))
	} else {
		b.WriteString("Last update: never\n")
	}

	if d.Degraded || d.Portfolio.Degraded {
		b.WriteString("\n⚠️ Data is degraded")

		if d.Portfolio.LastEngineFailure != "" {
			b.WriteString(": " + d.Portfolio.LastEngineFailure)
		}
	}

	return Reply{Text: strings.TrimRight(b.String(), "\n"), Keyboard: nil, OK: true}
}

func (c *Commands) trades(_ context.Context, _ string) Reply {
	p := c.model.Snapshot().Portfolio

	if len(p.OpenTrades) == 0 {
		return Reply{Text: "No open trades.", Keyboard: nil, OK: true}
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Open trades (%d):\n", len(p.OpenTrades))

	for _, t := range p.OpenTrades {
		fmt.Fprintf(&b, "\n#%d %s\n  stake %.2f %s  open %.6g  now %.6g\n  P/L %+.2f%% (%+.2f %s)\n",
			t.TradeID, t.Pair,
			float64(t.StakeAmount), p.Currency,
			float64(t.OpenRate), float64(t.CurrentRate),
			float64(t.ProfitPct), float64(t.ProfitAbs), p.Currency,
		)
	}

	return Reply{Text: strings.TrimRight(b.String(), "\n"), Keyboard: nil, OK: true}
}

func (c *Commands) pnl(_ context.Context, _ string) Reply {
	p := c.model.Snapshot().Portfolio

	var b strings.Builder

	fmt.Fprintf(&b, "Balance: %.2f %s (free %.2f)\n", float64(p.TotalBalance), p.Currency, float64(p.FreeBalance))
	fmt.Fprintf(&b, "Total P/L: %+.2f %s\n", float64(p.TotalPnL), p.Currency)
	fmt.Fprintf(&b, "Realized: %+.2f %s\n", float64(p.ClosedPnL), p.Currency)
	fmt.Fprintf(&b, "Day %+.2f  Week %+.2f  Month %+.2f\n", float64(p.DailyPnL), float64(p.WeeklyPnL), float64(p.MonthlyPnL))
	fmt.Fprintf(&b, "Trades: %d (%d closed, %d won, %d lost)\n", p.TradeCount, p.ClosedTradeCount, p.WinningTrades, p.LosingTrades)
	fmt.Fprintf(&b, "Win rate: %.1f%%\n", float64(p.WinRate))
	fmt.Fprintf(&b, "Best %+.2f%%  Worst %+.2f%%", float64(p.BestTradePct), float64(p.WorstTradePct))

	if p.FromSnapshot {
		b.WriteString("\n\n(from the last stored snapshot)")
	}

	return Reply{Text: b.String(), Keyboard: nil, OK: true}
}

func (c *Commands) conditions(_ context.Context, args string) Reply {
	k := c.topK

	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			return failure(errors.Newf(errors.ErrCodeInvalidParameter, "k must be a positive number, got %q", args))
		}

		k = n
	}

	conds := c.model.Snapshot().Conditions
	if len(conds) == 0 {
		return Reply{Text: "No conditions yet.", Keyboard: nil, OK: true}
	}

	var (
		b     strings.Builder
		ready []string
	)

	fmt.Fprintf(&b, "Top %d of %d symbols:\n", min(k, len(conds)), len(conds))

	for i, cond := range conds {
		if i >= k {
			break
		}

		ev := cond.Evaluation
		fmt.Fprintf(&b, "\n%s  close %.6g  RSI %.1f\n  buy %d/%d (%.0f%%)  sell %d/%d (%.0f%%)",
			cond.Symbol, float64(cond.Snapshot.Close), float64(cond.Snapshot.RSI),
			ev.BuyMet, ev.BuyTotal, float64(ev.BuyPct),
			ev.SellMet, ev.SellTotal, float64(ev.SellPct),
		)

		switch {
		case cond.Snapshot.Stale:
			b.WriteString("  stale")
		case ev.ReadyToBuy:
			b.WriteString("  ✅ BUY")

			ready = append(ready, cond.Symbol)
		case ev.ReadyToSell:
			b.WriteString("  🔻 SELL")
		}

		b.WriteString("\n")
	}

	return Reply{Text: strings.TrimRight(b.String(), "\n"), Keyboard: tradeButtons(ready), OK: true}
}

func (c *Commands) signals(_ context.Context, _ string) Reply {
	sigs := c.model.Snapshot().Signals
	if len(sigs) == 0 {
		return Reply{Text: "No signals yet.", Keyboard: nil, OK: true}
	}

	var b strings.Builder

	b.WriteString("Latest signals:\n")

	for i := len(sigs) - 1; i >= 0 && len(sigs)-i <= maxSignalLines; i-- {
		s := sigs[i]
		fmt.Fprintf(&b, "%s %s %s @ %.6g  strength %.0f%%  confidence %.2f\n",
			s.TS.UTC().Format("01-02 15:04"), s.Side, s.Symbol,
			float64(s.Price), float64(s.Strength), float64(s.Confidence),
		)
	}

	return Reply{Text: strings.TrimRight(b.String(), "\n"), Keyboard: nil, OK: true}
}

func (c *Commands) forceTrade(ctx context.Context, args string) Reply {
	return outcome(c.control.ForceTrade(ctx, args))
}

func (c *Commands) forceExit(ctx context.Context, args string) Reply {
	if args == "" {
		return failure(errors.New(errors.ErrCodeMissingParameter, "usage: /forceexit ID|all"))
	}

	return outcome(c.control.ForceExit(ctx, args, ""))
}

func (c *Commands) emergencyStop(ctx context.Context, _ string) Reply {
	return outcome(c.control.EmergencyStop(ctx))
}

func (c *Commands) startEngine(ctx context.Context, _ string) Reply {
	return outcome(c.control.StartEngine(ctx))
}

func (c *Commands) stopEngine(ctx context.Context, _ string) Reply {
	return outcome(c.control.StopEngine(ctx))
}

func (c *Commands) toggle(ctx context.Context, _ string) Reply {
	return outcome(c.control.ToggleAutoTrading(ctx), nil)
}

func (c *Commands) refresh(_ context.Context, _ string) Reply {
	res := c.control.Refresh()
	if !res.Success {
		return Reply{Text: "❌ " + res.Message, Keyboard: nil, OK: false}
	}

	return outcome(res, nil)
}

func (c *Commands) notify(ctx context.Context, args string) Reply {
	if args == "" {
		return failure(errors.New(errors.ErrCodeMissingParameter, "usage: /notify TEXT"))
	}

	if c.announcer == nil {
		return failure(errors.New(errors.ErrCodeChannelDisabled, "notifications are not configured"))
	}

	records := c.announcer.Trigger(ctx, types.KindSystemStatus, "Operator note", args)

	channels := make([]string, 0, len(records))
	for _, r := range records {
		if r.Delivered {
			channels = append(channels, "✅ "+string(r.Channel))
		} else {
			channels = append(channels, "❌ "+string(r.Channel)+" ("+string(r.Status)+")")
		}
	}

	sort.Strings(channels)

	if len(channels) == 0 {
		return Reply{Text: "Nothing was sent.", Keyboard: nil, OK: true}
	}

	return Reply{Text: "Notification sent:\n" + strings.Join(channels, "\n"), Keyboard: nil, OK: true}
}

func outcome(res control.Result, err error) Reply {
	if err != nil {
		return failure(err)
	}

	mark := "✅"
	if !res.Success {
		mark = "❌"
	}

	return Reply{Text: mark + " " + res.Message, Keyboard: nil, OK: res.Success}
}

// failure renders err as "❌ <kind>: <message>".
func failure(err error) Reply {
	msg := err.Error()

	var e *errors.Error
	if errors.As(err, &e) {
		msg = e.Message
	}

	// engine failures name the endpoint and what the engine said
	if ee, ok := engineclient.AsEngineError(err); ok {
		msg = ee.Endpoint + ": " + ee.Detail
		if ee.StatusCode > 0 {
			msg = fmt.Sprintf("%s (%d): %s", ee.Endpoint, ee.StatusCode, ee.Detail)
		}
	}

	return Reply{Text: "❌ " + errors.Kind(err) + ": " + msg, Keyboard: nil, OK: false}
}

func menu() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Status", "cmd:status"),
			tgbotapi.NewInlineKeyboardButtonData("P/L", "cmd:pnl"),
			tgbotapi.NewInlineKeyboardButtonData("Trades", "cmd:trades"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Conditions", "cmd:conditions"),
			tgbotapi.NewInlineKeyboardButtonData("Signals", "cmd:signals"),
			tgbotapi.NewInlineKeyboardButtonData("Refresh", "cmd:refresh"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Auto-trading", "cmd:autotrading"),
			tgbotapi.NewInlineKeyboardButtonData("Emergency stop", "cmd:emergency_stop"),
		),
	)

	return &kb
}

func tradeButtons(pairs []string) *tgbotapi.InlineKeyboardMarkup {
	if len(pairs) == 0 {
		return nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Buy "+p, "trade:"+p),
		))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)

	return &kb
}

func reachable(ok bool) string {
	if ok {
		return "reachable"
	}

	return "unreachable"
}

func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}

func runningState(running bool) string {
	if running {
		return "running"
	}

	return "not running"
}

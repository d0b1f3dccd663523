// Package browser provides a read-only text user interface for
// inspecting a finished model.AssemblyModel: a symbol table pane, a
// scrolling address/bytes/source pane, and a pass-2 region pane. There
// is no live execution to single-step or set breakpoints against, so
// every pane is a static render of the model the code generator
// already produced.
package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/devzendo/transputer-asm/codegen"
	"github.com/devzendo/transputer-asm/model"
)

// Browser is the top-level TUI application.
type Browser struct {
	Model   *model.AssemblyModel
	Regions []*codegen.Pass2Region

	App   *tview.Application
	Pages *tview.Pages

	MainLayout  *tview.Flex
	SourceView  *tview.TextView
	SymbolView  *tview.TextView
	RegionView  *tview.TextView
	StatusView  *tview.TextView

	lines []sourceRow
}

// sourceRow is one rendered line of the address/bytes/source pane.
type sourceRow struct {
	lineNumber int
	address    int32
	hasStorage bool
	text       string
}

// New builds a Browser over an already-assembled model and its
// captured pass-2 regions.
func New(m *model.AssemblyModel, regions []*codegen.Pass2Region) *Browser {
	b := &Browser{
		Model:   m,
		Regions: regions,
		App:     tview.NewApplication(),
	}
	b.buildRows()
	b.initializeViews()
	b.buildLayout()
	b.setupKeyBindings()
	return b
}

func (b *Browser) buildRows() {
	b.Model.ForeachLineSourcedValues(func(line model.IndexedLine, values []model.SourcedValue) {
		row := sourceRow{
			lineNumber: line.Source.LineNumber,
			text:       line.RawText,
		}
		for _, v := range values {
			if s, ok := v.(*model.Storage); ok {
				row.address = s.Address
				row.hasStorage = true
				break
			}
		}
		b.lines = append(b.lines, row)
	})
}

func (b *Browser) initializeViews() {
	b.SourceView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	b.SourceView.SetBorder(true).SetTitle(" Source ")

	b.SymbolView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	b.SymbolView.SetBorder(true).SetTitle(" Symbols ")

	b.RegionView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	b.RegionView.SetBorder(true).SetTitle(" Pass-2 Regions ")

	b.StatusView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	b.StatusView.SetBorder(true).SetTitle(" Status ")
}

func (b *Browser) buildLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(b.SymbolView, 0, 2, false).
		AddItem(b.RegionView, 0, 1, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(b.SourceView, 0, 2, false).
		AddItem(right, 0, 1, false)

	b.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(b.StatusView, 3, 0, false)

	b.Pages = tview.NewPages().
		AddPage("main", b.MainLayout, true, true)
}

func (b *Browser) setupKeyBindings() {
	b.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyCtrlC:
			b.App.Stop()
			return nil
		case event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q'):
			b.App.Stop()
			return nil
		case event.Key() == tcell.KeyCtrlL:
			b.RefreshAll()
			return nil
		}
		return event
	})
}

// RefreshAll re-renders every pane from the model. The model never
// changes once the browser is running, so this only needs to run
// once at startup, but it is exposed for Ctrl+L's manual refresh.
func (b *Browser) RefreshAll() {
	b.updateSourceView()
	b.updateSymbolView()
	b.updateRegionView()
	b.updateStatusView()
	b.App.Draw()
}

func (b *Browser) updateSourceView() {
	var sb strings.Builder
	for _, row := range b.lines {
		if row.hasStorage {
			fmt.Fprintf(&sb, "[yellow]0x%08X[white] %6d  %s\n", uint32(row.address), row.lineNumber, row.text)
		} else {
			fmt.Fprintf(&sb, "           %6d  %s\n", row.lineNumber, row.text)
		}
	}
	b.SourceView.SetText(sb.String())
}

func (b *Browser) updateSymbolView() {
	symbols := b.Model.SymbolsForListing()
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Name.Key() < symbols[j].Name.Key() })

	var sb strings.Builder
	for _, sym := range symbols {
		color := "white"
		if sym.Kind == model.Label {
			color = "green"
		}
		fmt.Fprintf(&sb, "[%s]%-16s[white] %s 0x%08X  (line %d)\n",
			color, sym.Name.String(), sym.Kind, uint32(sym.Value), sym.DefinedOnLine)
	}
	b.SymbolView.SetText(sb.String())
}

func (b *Browser) updateRegionView() {
	var sb strings.Builder
	for i, r := range b.Regions {
		fmt.Fprintf(&sb, "[yellow]Region %d[white] start=0x%08X end=0x%08X size=%d bytes, %d line(s)\n",
			i+1, uint32(r.Start), uint32(r.End), r.Pass1BlockSize(), len(r.Lines))
	}
	if len(b.Regions) == 0 {
		sb.WriteString("[yellow]No IF1/ELSE/ENDIF regions[white]\n")
	}
	b.RegionView.SetText(sb.String())
}

func (b *Browser) updateStatusView() {
	lo, ok := b.Model.LowestStorageAddress()
	hi, _ := b.Model.HighestStorageAddress()
	status := "no storage emitted"
	if ok {
		status = fmt.Sprintf("image 0x%08X-0x%08X (%d bytes), processor=%s, title=%q",
			uint32(lo), uint32(hi), hi-lo, b.Model.Processor(), b.Model.Title())
	}
	b.StatusView.SetText(status + "   (q to quit, Ctrl+L to refresh)")
}

// Run starts the browser's event loop; it blocks until the user quits.
func (b *Browser) Run() error {
	b.RefreshAll()
	return b.App.SetRoot(b.Pages, true).SetFocus(b.SourceView).Run()
}

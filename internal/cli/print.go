package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/idilsaglam/posts/internal/model"
	"github.com/idilsaglam/posts/internal/ui"
)

// -------------- rendering helpers --------------

func stats(items []model.Item) (done, pending int) {
	for _, it := range items {
		if it.Done {
			done++
		} else {
			pending++
		}
	}
	return
}

func printList(items []model.Item, group bool) {
	t := ui.Current()
	d, p := stats(items)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		ui.C(t.Title, "Posts"),
		ui.C(t.Success, t.SymDone), d,
		ui.C(t.Pending, t.SymUnchecked), p,
		ui.C(t.Accent, "Total"), len(items),
	)

	lines := []string{header, ui.C(t.Muted, ui.ProgressBar(d, d+p, 28)), ""}
	if group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items, 1)...)
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `posts add \"Sunset at the pier\"`"))
	ui.Panel(lines)
}

// flatLines numbers rows from first so indexes stay valid in grouped output.
func flatLines(items []model.Item, first int) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{ui.C(t.Muted, "no posts")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		box, color := t.BoxUnchecked, t.Muted
		if it.Done {
			box, color = t.BoxChecked, t.Success
		}
		row := fmt.Sprintf("%s %s %s  %s",
			ui.C(t.Muted, fmt.Sprintf("%2d.", first+i)),
			ui.C(color, box),
			ui.Truncate(it.Name, 60),
			ui.C(t.Accent, fmt.Sprintf("▲%d ▼%d", it.Upvote, it.Downvote)),
		)
		if it.DueDate != "" {
			row += "  " + ui.C(t.Muted, it.DueDate)
		}
		if it.HasAttachment() {
			row += " 📎"
		}
		out = append(out, row)
	}
	return out
}

type indexed struct {
	pos int
	it  model.Item
}

func groupLines(items []model.Item) []string {
	t := ui.Current()
	var pend, done []indexed
	for i, it := range items {
		if it.Done {
			done = append(done, indexed{i + 1, it})
		} else {
			pend = append(pend, indexed{i + 1, it})
		}
	}
	section := func(title string, rows []indexed) []string {
		lines := []string{ui.C(t.Accent, title)}
		if len(rows) == 0 {
			return append(lines, ui.C(t.Muted, "(none)"))
		}
		for _, r := range rows {
			lines = append(lines, flatLines([]model.Item{r.it}, r.pos)...)
		}
		return lines
	}
	lines := section("Pending", pend)
	lines = append(lines, "")
	return append(lines, section("Done", done)...)
}

func printItem(it model.Item) {
	t := ui.Current()
	row := func(k, v string) string { return fmt.Sprintf("%-10s %s", ui.C(t.Muted, k), v) }
	status := ui.C(t.Pending, "pending")
	if it.Done {
		status = ui.C(t.Success, "done")
	}
	lines := []string{
		ui.C(t.Title, it.Name),
		"",
		row("id", it.ID),
		row("status", status),
		row("votes", fmt.Sprintf("▲%d ▼%d", it.Upvote, it.Downvote)),
	}
	if it.DueDate != "" {
		due := it.DueDate
		if d, err := model.ParseDueDate(it.DueDate); err == nil {
			due += " (" + humanize.Time(d) + ")"
		}
		lines = append(lines, row("due", due))
	}
	if it.HasAttachment() {
		lines = append(lines, row("image", it.AttachmentURL))
	}
	if it.CreatedAt != nil {
		lines = append(lines, row("created", it.CreatedAt.Local().Format(time.RFC822)))
	}
	ui.Panel(lines)
}

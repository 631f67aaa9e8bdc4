package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/pipeline"
)

var (
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	selectedStyle = cellStyle.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	titleStyle    = lipgloss.NewStyle().Bold(true).PaddingTop(1)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle    = lipgloss.NewStyle().
			Padding(0, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
)

// NewProgress returns a bar that advances once per evaluated candidate k.
func NewProgress(w io.Writer, candidates int) *progressbar.ProgressBar {
	return progressbar.NewOptions(candidates,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("evaluating cluster counts"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// Evaluation renders the candidate table with the chosen k highlighted.
func Evaluation(candidates []cluster.Candidate, chosen int) string {
	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		rows[i] = []string{
			strconv.Itoa(c.K),
			strconv.FormatFloat(c.Silhouette, 'f', 4, 64),
			strconv.FormatFloat(c.Inertia, 'f', 2, 64),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("k", "silhouette", "inertia").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(candidates) && candidates[row].K == chosen:
				return selectedStyle
			default:
				return cellStyle
			}
		})

	return titleStyle.Render("Cluster count evaluation") + "\n" + t.Render()
}

// Quality renders the per-method quality of the final labelings.
func Quality(quality map[cluster.Method]cluster.Quality) string {
	var rows [][]string

	for _, m := range cluster.Methods() {
		q, ok := quality[m]
		if !ok {
			continue
		}

		bic := "-"
		if m == cluster.MethodGMM {
			bic = strconv.FormatFloat(q.BIC, 'f', 1, 64)
		}

		rows = append(rows, []string{
			string(m),
			strconv.Itoa(q.K),
			strconv.FormatFloat(q.Silhouette, 'f', 4, 64),
			strconv.FormatFloat(q.Inertia, 'f', 2, 64),
			bic,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("method", "k", "silhouette", "inertia", "bic").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		})

	return titleStyle.Render("Method quality") + "\n" + t.Render()
}

// Summary renders the run outcome: cleaning counts, model parameters, the
// files written and any warnings.
func Summary(res *pipeline.Result, paths []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "run        %s\n", res.ID)
	fmt.Fprintf(&b, "horizon    %s\n", res.Horizon.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "rows       %d read, %d kept\n", res.Stats.Raw, res.Stats.Kept)
	fmt.Fprintf(&b, "customers  %d\n", len(res.Profiles))

	if res.CLV != nil {
		bg, gg := res.CLV.BGNBD, res.CLV.GammaGamma
		fmt.Fprintf(&b, "bg/nbd     r=%.4f alpha=%.4f a=%.4f b=%.4f\n", bg.R, bg.Alpha, bg.A, bg.B)
		fmt.Fprintf(&b, "gamma      p=%.4f q=%.4f v=%.4f\n", gg.P, gg.Q, gg.V)
		fmt.Fprintf(&b, "clv        %d forecast, %d unestimable\n", len(res.CLV.Forecasts), res.CLV.Unestimable)
	}

	for _, p := range paths {
		fmt.Fprintf(&b, "wrote      %s\n", p)
	}

	out := panelStyle.Render(strings.TrimRight(b.String(), "\n"))

	for _, w := range res.Warnings {
		out += "\n" + warnStyle.Render("warning: "+w)
	}

	return out
}

// Render combines the cluster tables, when clustering ran, with the summary.
func Render(res *pipeline.Result, paths []string) string {
	parts := []string{}

	if res.Clusters != nil {
		parts = append(parts,
			Evaluation(res.Clusters.Evaluation, res.Clusters.Quality[cluster.MethodKMeans].K),
			Quality(res.Clusters.Quality),
		)
	}

	parts = append(parts, titleStyle.Render("Summary"), Summary(res, paths))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

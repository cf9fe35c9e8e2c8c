package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"smugsync/internal/database"
	syncer "smugsync/internal/sync"
)

func printPlan(w io.Writer, plan syncer.Plan) {
	if len(plan) == 0 {
		fmt.Fprintln(w, "Nothing to do.")
		return
	}
	var creates, uploads, skips int
	var bytes int64
	for _, a := range plan {
		fmt.Fprintln(w, a.String())
		switch a.Type {
		case syncer.ActionCreateFolder, syncer.ActionCreateAlbum:
			creates++
		case syncer.ActionUploadImage:
			uploads++
			bytes += a.Size
		default:
			skips++
		}
	}
	fmt.Fprintf(w, "\n%d to create, %d to upload (%s), %d skipped.\n",
		creates, uploads, humanize.Bytes(uint64(bytes)), skips)
}

func printSummary(w io.Writer, res *syncer.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "Sync finished in %s: %d created, %d uploaded (%s), %d skipped, %d failed",
		res.Duration.Round(time.Millisecond), res.Created, res.Uploaded,
		humanize.Bytes(uint64(res.UploadedBytes)), res.Skipped, res.Failed)
	if res.Cancelled > 0 {
		fmt.Fprintf(w, ", %d cancelled", res.Cancelled)
	}
	fmt.Fprintln(w, ".")

	failures := res.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, "Failed:")
	for _, o := range failures {
		reason := o.Reason
		if o.Err != nil {
			reason = o.Err.Error()
		}
		fmt.Fprintf(w, "  %s: %s: %s\n", o.Action.Path, o.Kind, reason)
	}
}

func printRun(w io.Writer, r *database.RunRecord, now time.Time) {
	status := "ok"
	switch {
	case r.Aborted != "":
		status = "aborted"
	case !r.OK():
		status = "failed"
	}
	fmt.Fprintf(w, "%s  %s (%s)  %s  -> %s  %d created, %d uploaded (%s), %d skipped, %d failed\n",
		r.ID, r.Started.Local().Format("2006-01-02 15:04"), humanize.RelTime(r.Started, now, "ago", "from now"),
		status, r.Target, r.Created, r.Uploaded, humanize.Bytes(uint64(r.UploadedBytes)), r.Skipped, r.Failed)
	if r.Aborted != "" {
		fmt.Fprintf(w, "    aborted: %s\n", r.Aborted)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "    %s: %s: %s\n", f.Path, f.Kind, f.Reason)
	}
}

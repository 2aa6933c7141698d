package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tgwatch/tgwatch"
)

func newTabwriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
}

func printChannel(c tgwatch.Channel, lastUpdate int64) {
	w := newTabwriter()
	fmt.Fprintf(w, "ID:\t%d\n", c.ID)
	fmt.Fprintf(w, "Link:\t%s\n", c.Link)
	fmt.Fprintf(w, "Name:\t%s\n", c.Name)
	fmt.Fprintf(w, "Description:\t%s\n", c.Description)
	fmt.Fprintf(w, "Subscribers:\t%d\n", c.Subscribers)
	fmt.Fprintf(w, "Views (24h):\t%d\n", c.Views24h)
	fmt.Fprintf(w, "Posts (24h):\t%d\n", c.PostsCount)
	if lastUpdate != 0 {
		fmt.Fprintf(w, "Updated:\t%s\n", time.Unix(lastUpdate, 0).Format(time.RFC1123))
	}
	w.Flush()
}

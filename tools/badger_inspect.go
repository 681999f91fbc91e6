package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"qna-live/repositories"
)

// Offline viewer for the realtime store. Scans a key prefix and renders
// the decoded values as a table; unread notifications are highlighted.
func main() {
	dbPath := flag.String("db", "/tmp/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, notif:, room:, vote:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Who", "Detail", "Flags"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append(rowFor(rawKey, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// rowFor decodes a value according to its key prefix. Unknown prefixes
// fall back to the raw payload so the tool stays usable on new kinds.
func rowFor(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := json.Unmarshal(value, &m); err != nil {
			return rawRow(key, value)
		}
		return []string{key, "MESSAGE", m.At.Format("15:04:05"), shorten(m.Author), m.Content, m.Lang}

	case strings.HasPrefix(key, "notif:"):
		var n repositories.DiskNotification
		if err := json.Unmarshal(value, &n); err != nil {
			return rawRow(key, value)
		}
		flags := "read"
		if !n.Read {
			flags = color.New(color.BgBlack, color.FgGreen).Render("UNREAD")
		}
		return []string{key, "NOTIF/" + n.Type, n.At.Format("15:04:05"), shorten(n.Recipient), n.Content, flags}

	default:
		return rawRow(key, value)
	}
}

func rawRow(key string, value []byte) []string {
	detail := string(value)
	if len(detail) > 64 {
		detail = detail[:64] + "…"
	}
	return []string{key, "RAW", "", "", detail, fmt.Sprintf("%dB", len(value))}
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return db, nil
}

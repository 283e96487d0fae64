package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/namsral/flag"
	"github.com/scraperwall/botfilter/config"
	"github.com/scraperwall/botfilter/store"
	log "github.com/sirupsen/logrus"
)

func main() {
	kind := flag.String("store", config.StoreFile, "the evidence backend: file or badger")
	path := flag.String("path", "", "the evidence file or the badger db dir")
	namespace := flag.String("namespace", "ua", "the badger namespace to list: ua or ip")
	prefix := flag.String("prefix", "", "only show members with this prefix")
	count := flag.Bool("count", false, "only print the number of members")
	remove := flag.Bool("remove", false, "delete all evidence in path")

	flag.Parse()

	if *path == "" {
		log.Fatal("-path is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch *kind {
	case config.StoreFile:
		set, err := store.NewFileSet(*path)
		if err != nil {
			log.Fatal(err)
		}

		if *remove {
			if err := set.Destroy(); err != nil {
				log.Fatal(err)
			}
			return
		}

		members, err := set.Members()
		if err != nil {
			log.Fatal(err)
		}
		printMembers(members, *prefix, *count)

	case config.StoreBadger:
		db, err := store.NewBadgerDB(ctx, *path)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		if *remove {
			if err := db.RemovePrefix([]byte(*namespace), []byte(*prefix)); err != nil {
				log.Error(err)
			}
			return
		}

		if *count {
			n, err := db.Count([]byte(*namespace), []byte(*prefix))
			if err != nil {
				log.Error(err)
				return
			}
			fmt.Println(n)
			return
		}

		members, err := store.NewKVSet(db, *namespace).Members()
		if err != nil {
			log.Error(err)
			return
		}
		printMembers(members, *prefix, false)

	default:
		log.Fatalf("unknown store %q", *kind)
	}
}

func printMembers(members []string, prefix string, count bool) {
	n := 0
	for _, m := range members {
		if !strings.HasPrefix(m, prefix) {
			continue
		}
		n++
		if !count {
			fmt.Println(m)
		}
	}

	if count {
		fmt.Println(n)
	}
}

package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	gocask "github.com/AmrMurad1/Go-Cask"
	"github.com/AmrMurad1/Go-Cask/shared"
)

func printHelp() {
	fmt.Print("Commands:\n" +
		"  put <key> <value> - store a key-value pair\n" +
		"  get <key>         - retrieve a value by key\n" +
		"  del <key>         - delete a key-value pair\n" +
		"  compact           - rewrite the log, dropping dead records\n" +
		"  help              - show this help message\n" +
		"  exit              - exit the program\n")
}

func parseKey(s string) (uint32, error) {
	k, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q", s)
	}
	return uint32(k), nil
}

func main() {
	path := flag.String("db", "gocask.db", "path to the store file")
	flag.Parse()

	store, err := gocask.Open(*path)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer store.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit":
			return
		case "help":
			printHelp()
		case "put":
			if len(fields) < 3 {
				fmt.Println("usage: put <key> <value>")
				continue
			}
			key, err := parseKey(fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			value := strings.Join(fields[2:], " ")
			if err := store.Put(key, []byte(value)); err != nil {
				fmt.Println(err)
			}
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			key, err := parseKey(fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			value, err := store.Get(key)
			if errors.Is(err, shared.ErrKeyNotFound) {
				fmt.Println("(nil)")
			} else if err != nil {
				fmt.Println(err)
			} else {
				fmt.Println(string(value))
			}
		case "del":
			if len(fields) != 2 {
				fmt.Println("usage: del <key>")
				continue
			}
			key, err := parseKey(fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := store.Remove(key); err != nil {
				fmt.Println(err)
			}
		case "compact":
			if err := store.Compact(); err != nil {
				fmt.Println(err)
			}
		default:
			fmt.Println("Unknown command. Type 'help' for more information.")
		}
	}
}

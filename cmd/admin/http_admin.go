package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type liveCommand func(name string, args []string)

var liveCommands = map[string]liveCommand{
	"state":               getCmd("/admin/v1/state"),
	"plots":               getCmd("/admin/v1/plots"),
	"traders":             getCmd("/admin/v1/traders"),
	"schemas":             getCmd("/admin/v1/schemas"),
	"clear-empty-plots":   postCmd("/admin/v1/clear/empty-plots"),
	"clear-empty-traders": postCmd("/admin/v1/clear/empty-traders"),
	"clear-all":           postCmd("/admin/v1/clear/all"),
	"reload":              postCmd("/admin/v1/reload"),
	"snapshot":            postCmd("/admin/v1/snapshot"),
	"sweep":               postCmd("/admin/v1/sweep"),
	"create-plot":         plotCmd("/admin/v1/plots/create", true, false),
	"move-plot":           plotCmd("/admin/v1/plots/move", true, true),
	"rotate-plot":         plotCmd("/admin/v1/plots/rotate", false, true),
	"remove-plot":         plotCmd("/admin/v1/plots/remove", false, true),
	"remove-trader":       removeTraderCmd,
	"receipts":            receiptsCmd,
	"snapshots":           snapshotsCmd,
}

func urlFlag(fs *flag.FlagSet) *string {
	return fs.String("url", "http://127.0.0.1:8080", "server base url")
}

func getCmd(path string) liveCommand {
	return func(name string, args []string) {
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		baseURL := urlFlag(fs)
		_ = fs.Parse(args)
		do(http.MethodGet, *baseURL, path, nil)
	}
}

func postCmd(path string) liveCommand {
	return func(name string, args []string) {
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		baseURL := urlFlag(fs)
		_ = fs.Parse(args)
		do(http.MethodPost, *baseURL, path, struct{}{})
	}
}

func plotCmd(path string, needPos, needID bool) liveCommand {
	return func(name string, args []string) {
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		baseURL := urlFlag(fs)
		id := fs.String("id", "", "plot id")
		pos := fs.String("pos", "", "position x,y,z")
		force := fs.Bool("force", false, "create inside other plots, or remove an occupied plot")
		_ = fs.Parse(args)

		body := map[string]any{}
		if needID {
			if strings.TrimSpace(*id) == "" {
				fmt.Fprintln(os.Stderr, "missing -id")
				os.Exit(2)
			}
			body["id"] = *id
		}
		if needPos {
			p, err := parsePos(*pos)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -pos:", err)
				os.Exit(2)
			}
			body["pos"] = p
		}
		if name == "create-plot" || name == "remove-plot" {
			body["force"] = *force
		}
		do(http.MethodPost, *baseURL, path, body)
	}
}

func removeTraderCmd(name string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := urlFlag(fs)
	id := fs.String("id", "", "trader id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	do(http.MethodPost, *baseURL, "/admin/v1/traders/remove", map[string]string{"id": *id})
}

func receiptsCmd(name string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := urlFlag(fs)
	trader := fs.String("trader", "", "trader id filter")
	buyer := fs.String("buyer", "", "buyer id filter")
	seller := fs.String("seller", "", "seller id filter")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	q := url.Values{}
	for k, v := range map[string]string{"trader": *trader, "buyer": *buyer, "seller": *seller} {
		if v != "" {
			q.Set(k, v)
		}
	}
	q.Set("limit", strconv.Itoa(*limit))
	do(http.MethodGet, *baseURL, "/admin/v1/receipts?"+q.Encode(), nil)
}

func snapshotsCmd(name string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := urlFlag(fs)
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)
	do(http.MethodGet, *baseURL, "/admin/v1/snapshots?limit="+strconv.Itoa(*limit), nil)
}

// do sends one admin request and prints the reply body. A non-2xx reply
// exits 1 after printing.
func do(method, baseURL, path string, body any) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fail("encode", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fail("request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fail("request", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var pretty bytes.Buffer
	if json.Indent(&pretty, b, "", "  ") == nil {
		b = pretty.Bytes()
	}
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func parsePos(s string) ([3]float64, error) {
	var v [3]float64
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("QCDASH_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := newClient(baseURL, getToken())

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = cmdLogin(c, args)
	case "me":
		err = cmdMe(c)
	case "report":
		err = cmdReport(c, args)
	case "events":
		err = cmdEvents(c, args)
	case "activity":
		err = cmdActivity(c, args)
	case "invalidate":
		err = cmdInvalidate(c)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: qcreport <command> [flags]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login <name>            Log in and store the session token")
	fmt.Println("  me                      Show your identity and scope")
	fmt.Println("  report [flags]          Off-queue time per agent")
	fmt.Println("  events [flags]          Raw join/leave log per agent")
	fmt.Println("  activity [-date D]      Audit log of one day (admin)")
	fmt.Println("  invalidate              Drop cached telephony results (admin)")
	fmt.Println()
	yellow.Println("Report flags:")
	fmt.Println("  -start YYYY-MM-DD       First day (default today)")
	fmt.Println("  -end YYYY-MM-DD         Last day (default today)")
	fmt.Println("  -team, -shift, -expert  Narrow the report")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  QCDASH_URL              Server URL (default: http://localhost:8080)")
	fmt.Println("  QCDASH_TOKEN            Session token (overrides the stored token)")
	fmt.Println("  QCDASH_PASSWORD         Password for login (prompted when unset)")
	fmt.Println()
}

// reportFlags parses the filter flags shared by report and events
func reportFlags(name string, args []string) (map[string]string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	start := fs.String("start", "", "first day")
	end := fs.String("end", "", "last day")
	team := fs.String("team", "", "team")
	shift := fs.String("shift", "", "shift")
	expert := fs.String("expert", "", "expert name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return map[string]string{
		"start":  *start,
		"end":    *end,
		"team":   *team,
		"shift":  *shift,
		"expert": *expert,
	}, nil
}

func cmdLogin(c *client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: qcreport login <name>")
	}
	password := os.Getenv("QCDASH_PASSWORD")
	if password == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	resp, err := c.login(args[0], password)
	if err != nil {
		return err
	}
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(resp.Token+"\n"), 0o600); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	color.Green("Logged in as %s (%s)\n", resp.User.Name, resp.User.Role)
	fmt.Printf("Token valid until %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func cmdMe(c *client) error {
	viewer, err := c.me()
	if err != nil {
		return err
	}
	printViewer(os.Stdout, viewer)
	return nil
}

func cmdReport(c *client, args []string) error {
	params, err := reportFlags("report", args)
	if err != nil {
		return err
	}
	rep, err := c.presence(params)
	if err != nil {
		return err
	}
	printReport(os.Stdout, rep)
	return nil
}

func cmdEvents(c *client, args []string) error {
	params, err := reportFlags("events", args)
	if err != nil {
		return err
	}
	logs, err := c.events(params)
	if err != nil {
		return err
	}
	printEvents(os.Stdout, logs)
	return nil
}

func cmdActivity(c *client, args []string) error {
	fs := flag.NewFlagSet("activity", flag.ContinueOnError)
	date := fs.String("date", "", "day to list (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entries, err := c.activity(*date)
	if err != nil {
		return err
	}
	printActivity(os.Stdout, entries)
	return nil
}

func cmdInvalidate(c *client) error {
	if err := c.invalidate(); err != nil {
		return err
	}
	color.Green("Event cache invalidated\n")
	return nil
}

func tokenPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "qcdash", "token"), nil
}

func getToken() string {
	if token := os.Getenv("QCDASH_TOKEN"); token != "" {
		return token
	}
	path, err := tokenPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

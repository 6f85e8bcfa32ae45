// ABOUTME: Interactive shell for loopchat — drives the session core in-process.
// ABOUTME: Provides readline-style input with slash commands for chats and agents.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/loopchat/loopchat/internal/config"
	"github.com/loopchat/loopchat/internal/dispatch"
	"github.com/loopchat/loopchat/internal/identity"
	"github.com/loopchat/loopchat/internal/registry"
	"github.com/loopchat/loopchat/internal/session"
	"github.com/loopchat/loopchat/internal/store"
)

var (
	agentStyle  = color.New(color.FgGreen)
	userStyle   = color.New(color.FgBlue)
	errorStyle  = color.New(color.FgRed)
	faintStyle  = color.New(color.Faint)
	promptStyle = color.New(color.Bold)
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var kv store.KV
	if cfg.Database.Path == "" {
		fmt.Println(faintStyle.Sprint("No database configured, state will not survive exit"))
		kv = store.NewMemoryKV()
	} else {
		sqlite, err := store.NewSQLiteKV(cfg.Database.Path)
		if err != nil {
			return err
		}
		kv = sqlite
	}
	defer kv.Close()

	users, err := identity.NewManager(ctx, kv, logger)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)

	user := users.Current()
	if user == nil {
		user, err = login(ctx, scanner, users)
		if err != nil || user == nil {
			return err
		}
	}
	fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Email)

	reg, err := registry.New(ctx, kv, user.ID, logger)
	if err != nil {
		return err
	}
	sessions, err := session.New(ctx, kv, reg, user.ID, logger)
	if err != nil {
		return err
	}

	var client dispatch.Client
	if cfg.Dispatch.Client == config.ClientWebhook {
		client = dispatch.NewWebhookClient(cfg.Dispatch.WebhookTimeout, logger)
	} else {
		client = dispatch.NewSimulatedClient()
	}
	dispatcher := dispatch.New(sessions, client, dispatch.PendingMode(cfg.Dispatch.Pending), logger)

	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	return loop(ctx, scanner, users, reg, sessions, dispatcher)
}

// login prompts for credentials until one succeeds or input ends.
func login(ctx context.Context, scanner *bufio.Scanner, users *identity.Manager) (*identity.User, error) {
	for {
		email, err := readLine(ctx, scanner, "Email: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		password, err := readLine(ctx, scanner, "Password: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}

		user, err := users.Login(ctx, email, password)
		if err != nil {
			errorStyle.Println(err)
			continue
		}
		return user, nil
	}
}

func loop(ctx context.Context, scanner *bufio.Scanner, users *identity.Manager, reg *registry.Registry, sessions *session.Store, dispatcher *dispatch.Dispatcher) error {
	for {
		prompt := "> "
		if current := sessions.CurrentChat(); current != nil {
			prompt = promptStyle.Sprintf("[%s]> ", session.DisplayName(current))
		}

		input, err := readLine(ctx, scanner, prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := handleCommand(ctx, input, users, reg, sessions)
			if err != nil {
				errorStyle.Printf("[error] %v\n", err)
			}
			if quit {
				return nil
			}
			fmt.Println()
			continue
		}

		send(ctx, input, sessions, dispatcher)
		fmt.Println()
	}
}

// readLine prints the prompt and reads one line. The blocking Scan runs in
// its own goroutine so ctx cancellation interrupts the wait.
func readLine(ctx context.Context, scanner *bufio.Scanner, prompt string) (string, error) {
	fmt.Print(prompt)

	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if scanner.Scan() {
			inputCh <- scanner.Text()
		} else {
			if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}
	}()

	select {
	case <-ctx.Done():
		return "", io.EOF
	case err := <-errCh:
		return "", err
	case input := <-inputCh:
		return input, nil
	}
}

func handleCommand(ctx context.Context, input string, users *identity.Manager, reg *registry.Registry, sessions *session.Store) (quit bool, err error) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help":
		printHelp()

	case "/agents":
		printAgents(reg)

	case "/agent":
		return false, agentCommand(ctx, args, sessions)

	case "/new":
		if args == "" {
			return false, fmt.Errorf("usage: /new <agent-id>")
		}
		agent, err := reg.Get(args)
		if err != nil {
			return false, fmt.Errorf("unknown agent %q", args)
		}
		if !agent.IsActive {
			return false, fmt.Errorf("agent %q is inactive", args)
		}
		chat, err := sessions.CreateChat(ctx, agent)
		if err != nil {
			return false, err
		}
		printMessage(chat.Messages[0])

	case "/chats":
		printChats(sessions)

	case "/use":
		if args == "" {
			return false, fmt.Errorf("usage: /use <number>")
		}
		chats := sessions.Chats()
		n, convErr := strconv.Atoi(args)
		if convErr != nil || n < 1 || n > len(chats) {
			return false, fmt.Errorf("no such chat %q", args)
		}
		sessions.SetActiveChat(chats[n-1].ID)

	case "/rename":
		if args == "" {
			return false, fmt.Errorf("usage: /rename <new name>")
		}
		current := sessions.CurrentChat()
		if current == nil {
			return false, fmt.Errorf("no active chat")
		}
		return false, sessions.RenameChat(ctx, current.ID, args)

	case "/delete":
		current := sessions.CurrentChat()
		if current == nil {
			return false, fmt.Errorf("no active chat")
		}
		return false, sessions.DeleteChat(ctx, current.ID)

	case "/history":
		current := sessions.CurrentChat()
		if current == nil {
			return false, fmt.Errorf("no active chat")
		}
		for _, msg := range current.Messages {
			printMessage(msg)
		}

	case "/logout":
		if err := users.Logout(ctx); err != nil {
			return false, err
		}
		fmt.Println("Logged out, local state discarded")
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	return false, nil
}

// agentCommand handles /agent subcommands. Registry mutations that affect
// chats (rm) go through the session store for the cascade.
func agentCommand(ctx context.Context, args string, sessions *session.Store) error {
	sub, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)
	reg := sessions.Registry()

	switch sub {
	case "add":
		// /agent add <name> <platform> <webhook-url>
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return fmt.Errorf("usage: /agent add <name> <n8n|make> <webhook-url>")
		}
		name := strings.Join(fields[:len(fields)-2], " ")
		platform := fields[len(fields)-2]
		url := fields[len(fields)-1]
		agent, err := reg.Add(ctx, registry.AgentDraft{
			Name:       name,
			Type:       store.AgentTypeSpecialist,
			Platform:   platform,
			WebhookURL: url,
			Avatar:     "🤖",
			IsActive:   true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added agent %s (%s)\n", agent.Name, agent.ID)
		return nil

	case "rm":
		if rest == "" {
			return fmt.Errorf("usage: /agent rm <agent-id>")
		}
		return sessions.DeleteAgent(ctx, rest)

	case "on", "off":
		if rest == "" {
			return fmt.Errorf("usage: /agent %s <agent-id>", sub)
		}
		return reg.SetActive(ctx, rest, sub == "on")

	default:
		return fmt.Errorf("usage: /agent add|rm|on|off ...")
	}
}

func send(ctx context.Context, content string, sessions *session.Store, dispatcher *dispatch.Dispatcher) {
	current := sessions.CurrentChat()
	if current == nil {
		errorStyle.Println("[error] no active chat, use /new <agent-id>")
		return
	}

	faintStyle.Printf("%s is typing...\n", current.AgentName)
	if err := dispatcher.Send(ctx, content, current.ID); err != nil {
		errorStyle.Printf("[error] %v\n", err)
		return
	}

	after, err := sessions.Get(current.ID)
	if err != nil {
		return
	}
	last := after.Messages[len(after.Messages)-1]
	if last.Sender == store.SenderAgent {
		printMessage(last)
	}
}

func printMessage(msg *store.Message) {
	switch msg.Sender {
	case store.SenderAgent:
		agentStyle.Printf("%s: ", msg.AgentName)
	default:
		userStyle.Print("you: ")
	}
	fmt.Println(msg.Content)
}

func printAgents(reg *registry.Registry) {
	agents := reg.List()
	if len(agents) == 0 {
		fmt.Println("No agents configured")
		return
	}
	fmt.Println("Agents:")
	for _, a := range agents {
		state := "active"
		if !a.IsActive {
			state = "inactive"
		}
		fmt.Printf("  %s %s (%s) [%s, %s] %s\n", a.Avatar, a.Name, a.ID, a.Platform, state, faintStyle.Sprint(a.Description))
	}
}

func printChats(sessions *session.Store) {
	chats := sessions.Chats()
	if len(chats) == 0 {
		fmt.Println("No chats, use /new <agent-id>")
		return
	}
	activeID := sessions.ActiveChatID()
	fmt.Println("Chats:")
	for i, c := range chats {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		fmt.Printf(" %s %d. %s %s (%d messages)\n", marker, i+1, c.AgentAvatar, session.DisplayName(c), len(c.Messages))
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /agents                              List configured agents")
	fmt.Println("  /agent add <name> <platform> <url>   Add an agent")
	fmt.Println("  /agent rm <id>                       Delete an agent and its chats")
	fmt.Println("  /agent on|off <id>                   Activate or deactivate an agent")
	fmt.Println("  /new <agent-id>                      Start a chat with an agent")
	fmt.Println("  /chats                               List chats")
	fmt.Println("  /use <number>                        Switch the active chat")
	fmt.Println("  /rename <name>                       Rename the active chat")
	fmt.Println("  /delete                              Delete the active chat")
	fmt.Println("  /history                             Show the active chat's history")
	fmt.Println("  /logout                              Log out and discard local state")
	fmt.Println("  /help                                Show this help")
	fmt.Println("  /quit                                Exit")
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"smartlibrary/catalog"
	"smartlibrary/chat"
	"smartlibrary/config"
	"smartlibrary/gemini"
	"smartlibrary/library"
	"smartlibrary/recommend"
	"smartlibrary/voice"
)

const configFile = "smartlibrary.toml"

// app bundles the per-run state the command handlers share.
type app struct {
	session   *catalog.Session
	engine    *recommend.Engine
	assistant *chat.Assistant
	mic       *voice.Adapter
	log       *zap.Logger
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.LogLevel); err != nil {
		level = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{cfg.Paths.LogPath}
	zcfg.ErrorOutputPaths = []string{cfg.Paths.LogPath}
	return zcfg.Build()
}

func main() {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := library.NewStore(cfg.Paths.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Welcome to the Smart Library Catalog!")
	user, err := signIn(scanner, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sign-in failed: %v\n", err)
		os.Exit(1)
	}
	logger.Info("signed in",
		zap.String("user", user.Name), zap.String("role", string(user.Role)))

	// The language-model collaborator is optional: without a key the
	// recommendation engine still works via its rating fallback and chat
	// reports itself unavailable.
	var llm recommend.TextGenerator
	if cfg.Gemini.APIKey != "" {
		client, err := gemini.NewClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.GeminiTimeout())
		if err != nil {
			fmt.Printf("AI features disabled: %v\n", err)
			logger.Warn("gemini client unavailable", zap.Error(err))
		} else {
			llm = client
		}
	} else {
		fmt.Println("Note: no Gemini API key configured; AI chat is disabled and recommendations use ratings only.")
	}

	a := &app{
		session: catalog.NewSession(store, *user, logger),
		engine:  recommend.NewEngine(llm, logger),
		log:     logger,
	}
	if llm != nil {
		a.assistant = chat.NewAssistant(llm, nil)
	}
	// No speech capability exists in a terminal session; the adapter
	// reports Unsupported and the voice command stays disabled.
	a.mic, _ = voice.NewAdapter(nil, func(transcript string) {
		a.session.SetSearchTerm(transcript)
	}, nil)

	if err := a.session.Load(); err != nil {
		fmt.Printf("Warning: could not load catalog: %v (retry with 'reload')\n", err)
	}
	if a.assistant != nil {
		a.assistant.SetBooks(a.session.Books())
	}

	fmt.Printf("\nSigned in as %s", user.Name)
	if user.Role.IsAdmin() {
		fmt.Print(" [admin]")
	}
	fmt.Println()
	printHelp(user.Role.IsAdmin())

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg := splitCommand(line)

		switch cmd {
		case "list":
			a.handleList()
		case "search":
			a.session.SetSearchTerm(arg)
			a.handleList()
		case "genre":
			a.handleGenre(arg)
		case "genres":
			fmt.Println(strings.Join(a.session.Genres(), ", "))
		case "available":
			on := !a.session.Filter().AvailableOnly
			a.session.SetAvailableOnly(on)
			if on {
				fmt.Println("Showing available books only.")
			} else {
				fmt.Println("Showing all books.")
			}
			a.handleList()
		case "clear":
			a.session.SetSearchTerm("")
			a.session.SetGenre(catalog.AllGenres)
			a.session.SetAvailableOnly(false)
			fmt.Println("Filters cleared.")
		case "mine":
			a.handleMine()
		case "borrow":
			a.handleBorrow(arg)
		case "return":
			a.handleReturn(arg)
		case "add":
			a.handleAddBook(scanner)
		case "delete":
			a.handleDeleteBook(arg)
		case "reload":
			a.handleReload()
		case "recommend":
			a.handleRecommend()
		case "chat":
			a.handleChat(scanner)
		case "voice":
			a.handleVoice()
		case "whoami":
			fmt.Printf("%s (%s)\n", user.Name, user.Role)
		case "help":
			printHelp(user.Role.IsAdmin())
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		case "":
			// Ignore blank lines.
		default:
			fmt.Println("Unknown command. Type 'help' for the available commands.")
		}
	}
}

func splitCommand(line string) (cmd, arg string) {
	parts := strings.SplitN(line, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

func printHelp(admin bool) {
	fmt.Println("\nCommands:")
	fmt.Println("  Catalog:   list, search <text>, genre <name>, genres, available, clear")
	fmt.Println("  Borrowing: borrow <#>, return <#>, mine")
	fmt.Println("  AI:        recommend, chat")
	fmt.Println("  Other:     voice, reload, whoami, help, exit")
	if admin {
		fmt.Println("  Admin:     add book, delete <#>")
	}
	fmt.Println("\nBook numbers (#) refer to the most recent 'list' output; 'return' also accepts numbers from 'mine'.")
}

// signIn runs the sign-in / registration dialog. The first registered
// profile becomes the admin; later ones are members.
func signIn(sc *bufio.Scanner, store *library.Store) (*library.Profile, error) {
	for {
		fmt.Print("Sign [i]n or [r]egister? ")
		if !sc.Scan() {
			return nil, fmt.Errorf("input closed")
		}
		choice := strings.ToLower(strings.TrimSpace(sc.Text()))

		fmt.Print("Name: ")
		if !sc.Scan() {
			return nil, fmt.Errorf("input closed")
		}
		name := strings.TrimSpace(sc.Text())

		password, err := readPassword("Password: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}

		switch choice {
		case "r", "register":
			role := library.RoleMember
			count, err := store.CountProfiles()
			if err != nil {
				return nil, err
			}
			if count == 0 {
				role = library.RoleAdmin
			}
			profile, err := store.RegisterProfile(name, password, role)
			if err != nil {
				fmt.Printf("Registration failed: %v\n", err)
				continue
			}
			if role.IsAdmin() {
				fmt.Println("Registered as the first user: admin capability granted.")
			}
			return profile, nil
		default:
			profile, err := store.Authenticate(name, password)
			if err != nil {
				fmt.Printf("Sign-in failed: %v\n", err)
				continue
			}
			return profile, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Command handlers
// ---------------------------------------------------------------------------

func (a *app) renderBooks(books []library.Book) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Author", "Genre", "ISBN", "Rating", "Status"})
	for i, b := range books {
		rating := ""
		if b.Rating > 0 {
			rating = fmt.Sprintf("%.1f", b.Rating)
		}
		status := "available"
		if a.session.IsBorrowed(b.ID) {
			status = "borrowed by you"
		} else if !b.Available {
			status = "borrowed"
		}
		t.AppendRow(table.Row{i + 1, b.Title, b.Author, b.Genre, b.ISBN, rating, status})
	}
	t.Render()
}

func (a *app) handleList() {
	filtered := a.session.Filtered()
	if len(filtered) == 0 {
		f := a.session.Filter()
		if f.SearchTerm != "" {
			fmt.Printf("No books match %q.\n", f.SearchTerm)
		} else {
			fmt.Println("No books available in this genre.")
		}
		return
	}
	a.renderBooks(filtered)
	fmt.Printf("%d of %d book(s) shown.\n", len(filtered), len(a.session.Books()))
}

func (a *app) handleGenre(arg string) {
	if arg == "" {
		fmt.Println("Usage: genre <name>   (see 'genres' for options)")
		return
	}
	for _, g := range a.session.Genres() {
		if strings.EqualFold(g, arg) {
			a.session.SetGenre(g)
			a.handleList()
			return
		}
	}
	fmt.Printf("Unknown genre %q. Options: %s\n", arg, strings.Join(a.session.Genres(), ", "))
}

func (a *app) handleMine() {
	mine := a.session.Borrowed()
	if len(mine) == 0 {
		fmt.Println("You have no borrowed books.")
		return
	}
	a.renderBooks(mine)
}

// pickBook resolves a 1-based number against the given view.
func pickBook(arg string, view []library.Book) (*library.Book, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(view) {
		return nil, fmt.Errorf("pick a number between 1 and %d", len(view))
	}
	return &view[n-1], nil
}

func (a *app) handleBorrow(arg string) {
	book, err := pickBook(arg, a.session.Filtered())
	if err != nil {
		fmt.Printf("Invalid book number: %v\n", err)
		return
	}

	err = a.session.Borrow(book.ID)
	switch {
	case err == nil:
		fmt.Printf("Borrowed %q. Enjoy!\n", book.Title)
	case errors.Is(err, catalog.ErrAlreadyBorrowed):
		fmt.Println("You have already borrowed this book.")
	case errors.Is(err, library.ErrBookUnavailable):
		// The store's rejection is authoritative; resync the local view.
		fmt.Printf("%q is not available right now. Refreshing catalog...\n", book.Title)
		a.handleReload()
	default:
		fmt.Printf("Error borrowing book: %v\n", err)
	}
}

func (a *app) handleReturn(arg string) {
	// Accept numbers from the 'mine' view first, then the list view.
	book, err := pickBook(arg, a.session.Borrowed())
	if err != nil {
		if b2, err2 := pickBook(arg, a.session.Filtered()); err2 == nil {
			book = b2
		} else {
			fmt.Printf("Invalid book number: %v\n", err)
			return
		}
	}

	err = a.session.Return(book.ID)
	switch {
	case err == nil:
		fmt.Printf("Returned %q. Thank you!\n", book.Title)
	case errors.Is(err, library.ErrNotBorrowed):
		fmt.Println("You have not borrowed this book.")
	default:
		fmt.Printf("Error returning book: %v\n", err)
	}
}

func (a *app) handleAddBook(sc *bufio.Scanner) {
	if !a.session.User().Role.IsAdmin() {
		fmt.Println("Adding books requires admin capability.")
		return
	}

	prompt := func(label string) string {
		fmt.Printf("%s: ", label)
		if !sc.Scan() {
			return ""
		}
		return strings.TrimSpace(sc.Text())
	}

	fields := catalog.BookFields{
		Title:       prompt("Title"),
		Author:      prompt("Author"),
		Genre:       prompt("Genre"),
		ISBN:        prompt("ISBN"),
		Description: prompt("Description (optional)"),
	}
	if ratingStr := prompt("Rating 0-5 (optional)"); ratingStr != "" {
		rating, err := strconv.ParseFloat(ratingStr, 64)
		if err != nil || rating < 0 || rating > 5 {
			fmt.Println("Invalid rating, leaving it unset.")
		} else {
			fields.Rating = rating
		}
	}

	book, err := a.session.AddBook(fields)
	var verr *catalog.ValidationError
	switch {
	case err == nil:
		fmt.Printf("Added %q to the catalog.\n", book.Title)
	case errors.As(err, &verr):
		fmt.Printf("Cannot add book: %s.\n", verr.Error())
	default:
		fmt.Printf("Error adding book: %v\n", err)
	}
}

func (a *app) handleDeleteBook(arg string) {
	book, err := pickBook(arg, a.session.Filtered())
	if err != nil {
		fmt.Printf("Invalid book number: %v\n", err)
		return
	}

	err = a.session.DeleteBook(book.ID)
	switch {
	case err == nil:
		fmt.Printf("Deleted %q from the catalog.\n", book.Title)
	case errors.Is(err, catalog.ErrNotPermitted):
		fmt.Println("Deleting books requires admin capability.")
	case errors.Is(err, library.ErrBookNotFound):
		fmt.Println("That book no longer exists. Refreshing catalog...")
		a.handleReload()
	default:
		fmt.Printf("Error deleting book: %v\n", err)
	}
}

func (a *app) handleReload() {
	if err := a.session.Load(); err != nil {
		fmt.Printf("Reload failed, keeping current view: %v\n", err)
		return
	}
	if a.assistant != nil {
		a.assistant.SetBooks(a.session.Books())
	}
	fmt.Printf("Catalog refreshed: %d book(s).\n", len(a.session.Books()))
}

func (a *app) handleRecommend() {
	history := a.session.Borrowed()
	available := a.session.Available()
	if len(available) == 0 {
		fmt.Println("No available books to recommend.")
		return
	}

	fmt.Println("Generating personalized recommendations...")
	rec := a.engine.Recommend(context.Background(), history, available)
	if rec.Fallback {
		fmt.Println("Using backup recommendations: showing highest rated available books.")
	}
	a.renderBooks(rec.Books)
}

func (a *app) handleChat(sc *bufio.Scanner) {
	if a.assistant == nil {
		fmt.Println("Chat needs a Gemini API key; set gemini.api_key in", configFile)
		return
	}

	msgs := a.assistant.Messages()
	fmt.Printf("[assistant] %s\n", msgs[len(msgs)-1].Content)
	fmt.Println("(type your question, or 'back' to leave the chat)")

	for {
		fmt.Print("chat> ")
		if !sc.Scan() {
			return
		}
		input := strings.TrimSpace(sc.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "back") {
			return
		}

		reply, err := a.assistant.Ask(context.Background(), input)
		if err != nil {
			a.log.Warn("chat request failed", zap.Error(err))
		}
		fmt.Printf("[assistant] %s\n", reply)
	}
}

func (a *app) handleVoice() {
	if err := a.mic.Start(); err != nil {
		var verr *voice.Error
		if errors.As(err, &verr) && verr.Kind == voice.KindUnsupported {
			fmt.Println("Voice search is not supported in this environment; use 'search' instead.")
		} else {
			fmt.Printf("Voice search error: %v\n", err)
		}
		return
	}
	fmt.Println("Listening... speak your search query now.")
}

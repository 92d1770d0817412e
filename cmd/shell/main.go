package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/config"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	serverConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	confirm := &terminalConfirmer{reader: reader}

	repo, err := serverConfig.BuildRepository()
	if err != nil {
		log.Fatalf("Failed to build repository: %v", err)
	}
	name, blobs, err := serverConfig.BuildBlobStore()
	if err != nil {
		log.Fatalf("Failed to build blob store: %v", err)
	}

	accountsDir := ""
	if serverConfig.DataDir != "" {
		accountsDir = filepath.Join(serverConfig.DataDir, "accounts")
	}
	accounts, err := identity.NewManager(accountsDir, identity.WithConfirmer(confirm))
	if err != nil {
		log.Fatalf("Failed to build identity manager: %v", err)
	}

	svc, err := midistore.New(
		midistore.WithRepository(repo),
		midistore.WithBlobStore(name, blobs),
		midistore.WithIdentityProvider(accounts),
		midistore.WithConfirmer(confirm),
	)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	shell := NewShell(svc, accounts, reader)
	shell.Run()
}

// terminalConfirmer asks for a y/N answer on the controlling terminal
// before destructive actions proceed.
type terminalConfirmer struct {
	reader *bufio.Reader
}

func (c *terminalConfirmer) Confirm(ctx context.Context, action string) (bool, error) {
	fmt.Printf("Confirm: %s? [y/N]: ", action)
	answer, err := c.reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// Shell provides an interactive interface to a local catalog
type Shell struct {
	service  midistore.Service
	accounts *identity.Manager
	reader   *bufio.Reader
}

// NewShell creates a new interactive shell
func NewShell(service midistore.Service, accounts *identity.Manager, reader *bufio.Reader) *Shell {
	return &Shell{
		service:  service,
		accounts: accounts,
		reader:   reader,
	}
}

// Run starts the interactive shell
func (s *Shell) Run() {
	ctx := context.Background()

	fmt.Println("=== Midistore Shell ===")
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()

	for {
		fmt.Print("midistore> ")
		input, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				fmt.Printf("Error reading input: %v\n", err)
			}
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		command := parts[0]

		switch command {
		case "help", "h":
			s.showHelp()
		case "exit", "quit", "q":
			fmt.Println("Goodbye!")
			return
		case "login":
			s.handleLogin(ctx, parts[1:])
		case "logout":
			s.handleLogout(ctx)
		case "whoami":
			s.handleWhoami(ctx)
		case "publish":
			s.handlePublish(ctx, parts[1:])
		case "list", "ls":
			s.handleList(ctx, "")
		case "search":
			s.handleList(ctx, strings.Join(parts[1:], " "))
		case "get":
			s.handleGet(ctx, parts[1:])
		case "like":
			s.handleLike(ctx, parts[1:])
		case "delete", "rm":
			s.handleDelete(ctx, parts[1:])
		case "download":
			s.handleDownload(ctx, parts[1:])
		case "notifications", "inbox":
			s.handleNotifications(ctx)
		case "read":
			s.handleMarkRead(ctx, parts[1:])
		case "delete-account":
			s.handleDeleteAccount(ctx, parts[1:])
		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", command)
		}
	}
}

func (s *Shell) showHelp() {
	help := `
Available Commands:

  login <user> <password>      Log in, registering the account on first use
  logout                       End the current session
  whoami                       Show the current identity

  publish <title> <midi-file> [more-files...]
                               Publish a record; extra files are matched to
                               the video/audio slot by extension
  list, ls                     List the catalog, newest first
  search <keyword>             Filter the catalog by title keyword
  get <record-id>              Show one record
  like <record-id>             Toggle a like on someone else's record
  delete <record-id>           Delete an owned record and its payloads
  download <record-id> <kind> <out-file>
                               Save one payload (kind: midi, video, audio)

  notifications, inbox         Show like notifications for the current user
  read <notification-id>       Mark a notification as read

  delete-account <password>    Delete the current account

  help, h                      Show this help message
  exit, quit, q                Exit
`
	fmt.Println(help)
}

func (s *Shell) currentUser(ctx context.Context) (string, bool) {
	ident, ok, err := s.accounts.Current(ctx)
	if err != nil || !ok {
		return "", false
	}
	return ident.ID, true
}

func (s *Shell) handleLogin(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: login <user> <password>")
		return
	}

	ident, created, err := s.accounts.LoginOrRegister(ctx, args[0], args[1])
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return
	}
	if created {
		fmt.Printf("Account %q created and logged in\n", ident.ID)
	} else {
		fmt.Printf("Logged in as %q\n", ident.ID)
	}
}

func (s *Shell) handleLogout(ctx context.Context) {
	if err := s.accounts.Logout(ctx); err != nil {
		fmt.Printf("Logout failed: %v\n", err)
		return
	}
	fmt.Println("Logged out")
}

func (s *Shell) handleWhoami(ctx context.Context) {
	user, ok := s.currentUser(ctx)
	if !ok {
		fmt.Println("Not logged in")
		return
	}
	fmt.Println(user)
}

func (s *Shell) handlePublish(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: publish <title> <midi-file> [more-files...]")
		return
	}

	owner, ok := s.currentUser(ctx)
	if !ok {
		fmt.Println("Log in first")
		return
	}

	req := midistore.PublishRequest{OwnerID: owner, Title: args[0]}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for i, path := range args[1:] {
		kind := classifyUpload(path, i == 0)
		if kind == "" {
			fmt.Printf("Cannot place %q: unrecognized extension\n", path)
			return
		}

		file, err := os.Open(path)
		if err != nil {
			fmt.Printf("Cannot open %q: %v\n", path, err)
			return
		}
		closers = append(closers, file)

		stat, err := file.Stat()
		if err != nil {
			fmt.Printf("Cannot stat %q: %v\n", path, err)
			return
		}

		upload := midistore.FileUpload{
			Kind: kind,
			Name: filepath.Base(path),
			Size: stat.Size(),
			Data: file,
		}
		if i == 0 {
			req.Primary = upload
		} else {
			req.Companions = append(req.Companions, upload)
		}
	}

	record, err := s.service.Publish(ctx, req)
	if err != nil {
		fmt.Printf("Publish failed: %v\n", err)
		return
	}
	fmt.Printf("Published %q as %s\n", record.Title, record.ID)
}

// classifyUpload maps a file path to the upload slot its extension fits.
// The first file is always the required score payload.
func classifyUpload(path string, primary bool) midistore.FileKind {
	if primary {
		return midistore.FileKindScore
	}
	for _, kind := range []midistore.FileKind{midistore.FileKindVideo, midistore.FileKindAudio} {
		rule, ok := midistore.RuleFor(kind)
		if ok && midistore.HasAllowedExtension(path, rule.Extensions) {
			return kind
		}
	}
	return ""
}

func (s *Shell) handleList(ctx context.Context, keyword string) {
	var (
		views []*midistore.RecordView
		err   error
	)
	if keyword == "" {
		views, err = s.service.ListAll(ctx)
	} else {
		views, err = s.service.Search(ctx, keyword)
	}
	if err != nil {
		fmt.Printf("Error listing records: %v\n", err)
		return
	}

	if len(views) == 0 {
		fmt.Println("No records found")
		return
	}

	fmt.Printf("%-24s  %-30s  %-12s  %5s  %s\n", "ID", "Title", "Owner", "Likes", "Extras")
	fmt.Println(strings.Repeat("-", 90))
	for _, view := range views {
		title := view.Record.Title
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		owner := view.Record.OwnerID
		if view.OwnerRemoved {
			owner += " (removed)"
		}
		extras := make([]string, 0, len(view.Companions))
		for kind := range view.Companions {
			extras = append(extras, string(kind))
		}
		fmt.Printf("%-24s  %-30s  %-12s  %5d  %s\n",
			view.Record.ID, title, owner, len(view.Record.LikedBy), strings.Join(extras, ","))
	}
	fmt.Printf("\nTotal: %d\n", len(views))
}

func (s *Shell) handleGet(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: get <record-id>")
		return
	}

	view, err := s.service.SearchByID(ctx, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("ID:       %s\n", view.Record.ID)
	fmt.Printf("Title:    %s\n", view.Record.Title)
	fmt.Printf("Owner:    %s\n", view.Record.OwnerID)
	fmt.Printf("Created:  %s\n", view.Record.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Likes:    %d\n", len(view.Record.LikedBy))
	fmt.Printf("Score:    %s (%d bytes)\n", view.Primary.FileName, view.Primary.Size)
	for kind, info := range view.Companions {
		fmt.Printf("%-9s %s (%d bytes)\n", string(kind)+":", info.FileName, info.Size)
	}
}

func (s *Shell) handleLike(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: like <record-id>")
		return
	}

	actor, ok := s.currentUser(ctx)
	if !ok {
		fmt.Println("Log in first")
		return
	}

	result, err := s.service.ToggleLike(ctx, actor, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if result.Liked {
		fmt.Printf("Liked (%d total)\n", len(result.LikedBy))
	} else {
		fmt.Printf("Unliked (%d total)\n", len(result.LikedBy))
	}
}

func (s *Shell) handleDelete(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: delete <record-id>")
		return
	}

	requester, ok := s.currentUser(ctx)
	if !ok {
		fmt.Println("Log in first")
		return
	}

	if err := s.service.Delete(ctx, requester, args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Deleted")
}

func (s *Shell) handleDownload(ctx context.Context, args []string) {
	if len(args) != 3 {
		fmt.Println("Usage: download <record-id> <kind> <out-file>")
		return
	}

	record, err := s.service.GetRecord(ctx, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	kind := midistore.FileKind(args[1])
	var key string
	switch kind {
	case midistore.FileKindScore:
		key = record.PrimaryBlobID
	case midistore.FileKindVideo, midistore.FileKindAudio:
		key = record.CompanionBlobIDs[kind]
	default:
		fmt.Printf("Unknown kind %q (use midi, video, or audio)\n", args[1])
		return
	}
	if key == "" {
		fmt.Printf("Record has no %s payload\n", kind)
		return
	}

	rc, _, err := s.service.OpenBlob(ctx, key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer rc.Close()

	out, err := os.Create(args[2])
	if err != nil {
		fmt.Printf("Cannot create %q: %v\n", args[2], err)
		return
	}
	defer out.Close()

	n, err := io.Copy(out, rc)
	if err != nil {
		fmt.Printf("Download failed: %v\n", err)
		return
	}
	fmt.Printf("Saved %d bytes to %s\n", n, args[2])
}

func (s *Shell) handleNotifications(ctx context.Context) {
	user, ok := s.currentUser(ctx)
	if !ok {
		fmt.Println("Log in first")
		return
	}

	notes, err := s.service.Notifications(ctx, user)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(notes) == 0 {
		fmt.Println("No notifications")
		return
	}

	for _, n := range notes {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s %-22s %s liked %q (%s)\n",
			marker, n.ID, n.ActorID, n.SubjectTitle, n.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func (s *Shell) handleMarkRead(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: read <notification-id>")
		return
	}

	if _, ok := s.currentUser(ctx); !ok {
		fmt.Println("Log in first")
		return
	}

	if err := s.service.MarkNotificationRead(ctx, args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Marked read")
}

func (s *Shell) handleDeleteAccount(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: delete-account <password>")
		return
	}

	user, ok := s.currentUser(ctx)
	if !ok {
		fmt.Println("Log in first")
		return
	}

	if err := s.accounts.DeleteAccount(ctx, user, args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Account %q deleted\n", user)
}

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/keldara/vaultcraft/internal/config"
	"github.com/keldara/vaultcraft/internal/cryptoprim"
	"github.com/keldara/vaultcraft/internal/keystore"
	"github.com/keldara/vaultcraft/internal/platform"
	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/syncclient"
	"github.com/keldara/vaultcraft/internal/vaultengine"
)

func main() {
	if err := platform.DisableCoreDumps(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not disable core dumps:", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = cmdCreate(os.Args[2:])
	case "open":
		err = cmdOpen(os.Args[2:])
	case "login":
		err = cmdLogin(os.Args[2:])
	case "add":
		err = cmdAdd(os.Args[2:])
	case "edit":
		err = cmdEdit(os.Args[2:])
	case "get":
		err = cmdGet(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "remove":
		err = cmdRemove(os.Args[2:])
	case "rekey":
		err = cmdRekey(os.Args[2:])
	case "register":
		err = cmdRegister(os.Args[2:])
	case "sync":
		err = cmdSync(os.Args[2:])
	case "audit":
		err = cmdAudit(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	dieIf(err)
}

func usage() {
	fmt.Print(`vaultctl commands:

  create   --vault path --user name [--keystore dir]
  open     --vault path --user name [--keystore dir]  (verify only; prints no entries)
  add      --vault path --user name --site example.com --login alice --pass gen:20 [--note ...] [--category ...] [--favorite] [--keystore dir]
  edit     --vault path --user name --id N [--site ...] [--login ...] [--pass ...] [--note ...] [--category ...] [--favorite=true|false] [--keystore dir]
  get      --vault path --user name --id N [--keystore dir]
  list     --vault path --user name [--type category] [--keystore dir]
  remove   --vault path --user name --id N [--keystore dir]
  rekey    --vault path --user name [--keystore dir]
  register --user name --server URL
  login    --user name --server URL [--keystore dir]  (SRP login; stores the bearer token locally)
  sync     --vault path --user name --server URL [--keystore dir]
  audit verify --vault path --user name [--keystore dir]

Examples:
  vaultctl create --vault ./main.vault --user alice
  vaultctl add --vault ./main.vault --user alice --site example.com --login alice --pass gen:20
  vaultctl list --vault ./main.vault --user alice
`)
}

// commonFlags wires the --vault/--user/--keystore trio shared by every
// subcommand that opens a vault, mirroring the teacher's per-subcommand
// flag.NewFlagSet pattern with its shared --mongo/--db/--coll flags.
func commonFlags(name string) (*flag.FlagSet, *string, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vault", "path to vault file")
	user := fs.String("user", "", "username")
	keystoreDir := fs.String("keystore", "./vaultctl-keys", "key store directory")
	return fs, vaultPath, user, keystoreDir
}

func openKeyStore(dir string) (keystore.KeyStore, error) {
	return keystore.NewFile(dir)
}

// tokenKeystoreKey namespaces a user's persisted sync session token away
// from their device secret within the same KeyStore, since KeyStore is
// keyed by a single string per entry.
func tokenKeystoreKey(user string) string {
	return "token:" + user
}

func cmdCreate(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("create")
	_ = fs.Parse(args)
	if *user == "" {
		return errors.New("--user required")
	}

	master, err := promptSecret("Master password: ")
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)

	ks, err := openKeyStore(*keystoreDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	v, err := vaultengine.Create(*vaultPath, *user, master, ks, vaultengine.WithIterations(cfg.PBKDF2Iterations))
	if err != nil {
		return err
	}
	defer v.Close()

	fmt.Println("Vault created:", *vaultPath)
	return nil
}

// cmdOpen only proves the master password unlocks the vault; it never
// prints entries, matching SPEC_FULL.md §4.17's "open (verify only)".
func cmdOpen(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("open")
	_ = fs.Parse(args)
	if *user == "" {
		return errors.New("--user required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	cryptoprim.Zero(master)
	v.Close()

	fmt.Println("Vault opened successfully:", *vaultPath)
	return nil
}

func cmdAdd(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("add")
	site := fs.String("site", "", "site name")
	login := fs.String("login", "", "login/username field")
	pass := fs.String("pass", "", "password or gen:N to generate N chars")
	note := fs.String("note", "", "free-form note")
	category := fs.String("category", "", "category")
	favorite := fs.Bool("favorite", false, "mark favorite")
	_ = fs.Parse(args)
	if *user == "" || *site == "" || *login == "" || *pass == "" {
		return errors.New("--user/--site/--login/--pass required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	password := resolvePassword(*pass)
	id, err := v.Add(*site, *login, password, *note, *category, *favorite)
	if err != nil {
		return err
	}
	fmt.Println("Added entry id:", id)
	return printEntries(v)
}

func cmdEdit(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("edit")
	id := fs.Int("id", -1, "entry id")
	site := fs.String("site", "", "new site (optional)")
	login := fs.String("login", "", "new login (optional)")
	pass := fs.String("pass", "", "new password, or gen:N (optional)")
	note := fs.String("note", "", "new note (optional)")
	category := fs.String("category", "", "new category (optional)")
	favorite := fs.String("favorite", "", "true|false (optional)")
	_ = fs.Parse(args)
	if *user == "" || *id < 0 {
		return errors.New("--user/--id required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	var fields vaultengine.EditFields
	if *site != "" {
		fields.Site = site
	}
	if *login != "" {
		fields.Username = login
	}
	if *pass != "" {
		resolved := resolvePassword(*pass)
		fields.Password = &resolved
	}
	if *note != "" {
		fields.Note = note
	}
	if *category != "" {
		fields.Category = category
	}
	if *favorite != "" {
		b, err := strconv.ParseBool(*favorite)
		if err != nil {
			return fmt.Errorf("--favorite must be true or false: %w", err)
		}
		fields.Favorite = &b
	}

	if err := v.Edit(*id, fields); err != nil {
		return err
	}
	fmt.Println("Entry updated:", *id)
	return printEntries(v)
}

func cmdGet(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("get")
	id := fs.Int("id", -1, "entry id")
	_ = fs.Parse(args)
	if *user == "" || *id < 0 {
		return errors.New("--user/--id required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	entries, err := v.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == *id {
			b, _ := json.MarshalIndent(e, "", "  ")
			fmt.Println(string(b))
			return nil
		}
	}
	return fmt.Errorf("no entry with id %d", *id)
}

func cmdList(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("list")
	typ := fs.String("type", "", "filter by category")
	_ = fs.Parse(args)
	if *user == "" {
		return errors.New("--user required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	entries, err := v.List()
	if err != nil {
		return err
	}
	if *typ != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Category == *typ {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
	return nil
}

func cmdRemove(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("remove")
	id := fs.Int("id", -1, "entry id")
	_ = fs.Parse(args)
	if *user == "" || *id < 0 {
		return errors.New("--user/--id required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	if err := v.Remove(*id); err != nil {
		return err
	}
	fmt.Println("Removed entry id:", *id)
	return nil
}

func cmdRekey(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("rekey")
	_ = fs.Parse(args)
	if *user == "" {
		return errors.New("--user required")
	}

	ks, err := openKeyStore(*keystoreDir)
	if err != nil {
		return err
	}
	current, err := promptSecret("Current master password: ")
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(current)

	v, err := vaultengine.Open(*vaultPath, *user, current, ks)
	if err != nil {
		return err
	}
	defer v.Close()
	if warning := v.DeviceWarning(); warning != "" {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}

	newPass, err := promptSecret("New master password: ")
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(newPass)

	if err := v.ChangeMasterPassword(current, newPass); err != nil {
		return err
	}
	fmt.Println("Master password changed.")
	return nil
}

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	user := fs.String("user", "", "username")
	server := fs.String("server", "", "sync server base URL")
	_ = fs.Parse(args)
	if *user == "" || *server == "" {
		return errors.New("--user/--server required")
	}

	master, err := promptSecret("Master password: ")
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)

	reg, err := srp.GenerateRegistration(master)
	if err != nil {
		return err
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	client, err := newSyncClient(*server, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SyncTimeout())
	defer cancel()
	if err := client.Register(ctx, *user, reg); err != nil {
		return err
	}
	fmt.Println("Registered with sync server:", *server)
	return nil
}

// cmdLogin runs the SRP login exchange and persists the resulting
// bearer token in the local key store, so a later cmdSync can resume the
// session without re-running SRP (see newSyncClient).
func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("user", "", "username")
	server := fs.String("server", "", "sync server base URL")
	keystoreDir := fs.String("keystore", "./vaultctl-keys", "key store directory")
	_ = fs.Parse(args)
	if *user == "" || *server == "" {
		return errors.New("--user/--server required")
	}

	master, err := promptSecret("Master password: ")
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	client, err := newSyncClient(*server, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SyncTimeout())
	defer cancel()
	if _, err := client.Login(ctx, *user, master); err != nil {
		return err
	}

	ks, err := openKeyStore(*keystoreDir)
	if err != nil {
		return err
	}
	if err := ks.Put(tokenKeystoreKey(*user), []byte(client.Token())); err != nil {
		return err
	}
	fmt.Println("Logged in; session token stored locally.")
	return nil
}

func cmdSync(args []string) error {
	fs, vaultPath, user, keystoreDir := commonFlags("sync")
	server := fs.String("server", "", "sync server base URL")
	_ = fs.Parse(args)
	if *user == "" || *server == "" {
		return errors.New("--user/--server required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	client, err := newSyncClient(*server, cfg)
	if err != nil {
		return err
	}

	ks, err := openKeyStore(*keystoreDir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SyncTimeout())
	defer cancel()

	// Reuse a session token left by a prior `vaultctl login` if one is on
	// file; only fall back to a fresh SRP exchange when none was stored.
	token, hasToken, err := ks.Get(tokenKeystoreKey(*user))
	if err != nil {
		return err
	}
	if hasToken {
		client.SetToken(string(token))
	} else {
		if _, err := client.Login(ctx, *user, master); err != nil {
			return err
		}
		if err := ks.Put(tokenKeystoreKey(*user), []byte(client.Token())); err != nil {
			return err
		}
	}

	reconciler := syncclient.NewReconciler(client, cfg.SyncTimeout())
	if err := reconciler.Sync(v); err != nil {
		return err
	}
	fmt.Println("Sync complete.")
	return nil
}

func cmdAudit(args []string) error {
	if len(args) < 1 || args[0] != "verify" {
		return errors.New("usage: vaultctl audit verify --vault path --user name")
	}
	fs, vaultPath, user, keystoreDir := commonFlags("audit verify")
	_ = fs.Parse(args[1:])
	if *user == "" {
		return errors.New("--user required")
	}

	v, master, err := unlockVault(*vaultPath, *user, *keystoreDir)
	if err != nil {
		return err
	}
	defer cryptoprim.Zero(master)
	defer v.Close()

	entries := v.AuditEntries()
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))

	// VerifyAudit only covers this process's in-memory audit trail, since
	// the log is not persisted to the vault file (spec.md §4.9's audit
	// log is a session-scoped tamper check, not a durable record).
	if err := v.VerifyAudit(); err != nil {
		return err
	}
	fmt.Println("Audit chain OK (session-scoped).")
	return nil
}

// ============ shared helpers ============

func unlockVault(vaultPath, user, keystoreDir string) (*vaultengine.Vault, []byte, error) {
	ks, err := openKeyStore(keystoreDir)
	if err != nil {
		return nil, nil, err
	}
	master, err := promptSecret("Master password: ")
	if err != nil {
		return nil, nil, err
	}
	v, err := vaultengine.Open(vaultPath, user, master, ks)
	if err != nil {
		cryptoprim.Zero(master)
		return nil, nil, err
	}
	if warning := v.DeviceWarning(); warning != "" {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}
	return v, master, nil
}

func newSyncClient(server string, cfg config.Config) (*syncclient.Client, error) {
	t, err := syncclient.NewTransport(server, cfg.SyncTimeout())
	if err != nil {
		return nil, err
	}
	return syncclient.NewClient(t), nil
}

func printEntries(v *vaultengine.Vault) error {
	entries, err := v.List()
	if err != nil {
		return err
	}
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
	return nil
}

func resolvePassword(pass string) string {
	if strings.HasPrefix(pass, "gen:") {
		n, err := strconv.Atoi(strings.TrimPrefix(pass, "gen:"))
		if err != nil || n <= 0 {
			n = 20
		}
		return genPassword(n)
	}
	return pass
}

func promptSecret(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	br := bufio.NewReader(os.Stdin)
	master, err := br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(master) > 0 && master[len(master)-1] == '\n' {
		master = master[:len(master)-1]
	}
	if len(master) > 0 && master[len(master)-1] == '\r' {
		master = master[:len(master)-1]
	}
	return master, nil
}

func genPassword(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = alphabet[i%len(alphabet)]
		}
		return string(buf)
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}

func dieIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

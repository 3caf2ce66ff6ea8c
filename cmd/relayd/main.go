// Command relayd runs the Nostr relay core: it loads configuration,
// opens the badger-backed event store, wires the accept-policy chain, and
// serves the WebSocket/NIP-11 listener until interrupted.
//
// Grounded on the teacher's root main.go plus app/main.go's Run: the same
// config-load -> store-open -> listener-serve -> signal-wait shape, with
// the payment/ACL/web-UI wiring this spec drops (see DESIGN.md).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"relayd.dev/internal/config"
	"relayd.dev/internal/relay"
	"relayd.dev/pkg/accept"
	"relayd.dev/pkg/kind"
	"relayd.dev/pkg/nostrcrypto"
	"relayd.dev/pkg/relayinfo"
	"relayd.dev/pkg/store/badger"
)

func main() {
	cfg, err := config.New()
	if chk.E(err) {
		os.Exit(1)
	}
	log.I.F("starting relayd")

	var pubkeyBin []byte
	if cfg.Pubkey != "" {
		pubkeyBin, err = hex.DecodeString(cfg.Pubkey)
		if err != nil || !nostrcrypto.IsPubkey(pubkeyBin) {
			log.E.F("relayd: RELAYD_PUBKEY is not a valid relay identity key")
			os.Exit(1)
		}
	}

	st, err := badger.Open(cfg.DataDir)
	if chk.E(err) {
		os.Exit(1)
	}
	defer func() { chk.E(st.Close()) }()

	chain := accept.Chain{}
	if len(cfg.IPWhitelist) > 0 {
		chain = append(chain, &accept.IPAllowlist{Prefixes: cfg.IPWhitelist})
	}
	if len(cfg.BlockedKinds) > 0 {
		kinds := make([]kind.K, len(cfg.BlockedKinds))
		for i, k := range cfg.BlockedKinds {
			kinds[i] = kind.K(k)
		}
		chain = append(chain, accept.NewKindBlocklist(kinds...))
	}

	info := relayinfo.New(
		cfg.Name, cfg.Description, cfg.Contact, cfg.Pubkey,
		"relayd", version,
		st.SupportsNIP09(), cfg.EnableEOSE, st.SupportsNIP16(),
	)

	srv := relay.NewServer(relay.Options{
		Endpoint:   cfg.Endpoint,
		MaxSub:     cfg.MaxSub,
		EnableEOSE: cfg.EnableEOSE,
		Store:      st,
		Accept:     chain,
		Info:       info,
	})

	_, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Listen, cfg.Port)
	}()
	log.I.F("relayd: listening on %s:%d%s", cfg.Listen, cfg.Port, cfg.Endpoint)

	select {
	case <-sigs:
		fmt.Print("\r")
		log.I.F("relayd: shutting down")
	case err = <-serveErr:
		if chk.E(err) {
			log.E.F("relayd: listener error: %v", err)
		}
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	chk.E(srv.Shutdown(shutdownCtx))
}

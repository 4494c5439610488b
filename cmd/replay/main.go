// Command replay decodes captured websocket frames offline and prints the
// normalized events as JSON lines. Frames are read one per line.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"tradebridge/config"
	"tradebridge/exchange"
	"tradebridge/internal/registry"
	"tradebridge/logger"
	"tradebridge/models"
	"tradebridge/session"
	"tradebridge/signer"
)

const replayConnection registry.ConnectionID = "replay"

func main() {
	log := logger.GetLogger()

	exchangeName := flag.String("exchange", "", "Exchange the frames were captured from")
	framesPath := flag.String("frames", "", "File with one captured frame per line (default stdin)")
	configPath := flag.String("config", "", "Path to configuration file")
	subscriptionsPath := flag.String("subscriptions", "", "Path to subscription file")
	flag.Parse()

	kind, err := exchange.ParseKind(*exchangeName)
	if err != nil {
		log.WithError(err).Error("invalid exchange")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	subs, err := config.LoadSubscriptions(config.ResolveSubscriptionsPath(*subscriptionsPath))
	if err != nil {
		log.WithError(err).Error("failed to load subscriptions")
		os.Exit(1)
	}

	var exCfg config.ExchangeConfig
	switch kind {
	case exchange.Hyperliquid:
		exCfg = cfg.Exchanges.Hyperliquid
	case exchange.Okx:
		exCfg = cfg.Exchanges.Okx
	}
	protocol, err := session.NewProtocol(kind, exCfg)
	if err != nil {
		log.WithError(err).Error("failed to build protocol")
		os.Exit(1)
	}

	in := io.Reader(os.Stdin)
	if *framesPath != "" {
		f, err := os.Open(*framesPath)
		if err != nil {
			log.WithError(err).Error("failed to open frames")
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	r := newReplayer(protocol, string(kind), signer.Credentials(config.LoadCredentials(string(kind))))
	if err := r.subscribe(subs); err != nil {
		log.WithError(err).Error("failed to register subscriptions")
		os.Exit(1)
	}
	if err := r.run(in, os.Stdout); err != nil {
		log.WithError(err).Error("replay failed")
		os.Exit(1)
	}
	log.WithExchange(string(kind)).WithFields(logger.Fields{
		"frames":  r.frames,
		"events":  r.events,
		"dropped": r.dropped,
	}).Info("replay finished")
}

type replayer struct {
	protocol exchange.Protocol
	name     string
	creds    signer.Credentials
	registry *registry.Registry
	now      func() time.Time
	log      *logger.Entry

	frames  int
	events  int
	dropped int
}

func newReplayer(p exchange.Protocol, name string, creds signer.Credentials) *replayer {
	return &replayer{
		protocol: p,
		name:     name,
		creds:    creds,
		registry: registry.New(),
		now:      time.Now,
		log:      logger.GetLogger().WithComponent("replay").WithExchange(name),
	}
}

// subscribe registers the subscriptions for this exchange so that captured
// frames route to their correlation ids. The subscribe frames are discarded.
func (r *replayer) subscribe(subs []models.Subscription) error {
	var own []models.Subscription
	for _, sub := range subs {
		if sub.Exchange == r.name {
			own = append(own, sub)
		}
	}
	if len(own) == 0 {
		return nil
	}
	_, err := r.protocol.CreateSubscribeMessages(replayConnection, own, r.registry, r.creds)
	return err
}

func (r *replayer) run(in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r.frames++
		events, err := r.decode(line)
		if err != nil {
			r.dropped++
			r.log.WithError(err).WithField("frame", r.frames).Debug("dropping frame")
			continue
		}
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
			r.events++
		}
	}
	return scanner.Err()
}

func (r *replayer) decode(raw []byte) ([]models.Event, error) {
	decoded, err := r.protocol.DecodeMessage(replayConnection, raw, r.registry, r.now())
	if err != nil {
		return nil, err
	}
	kept := decoded[:0]
	for _, d := range decoded {
		// In-band responses have no request to resolve against offline.
		if d.PostID != 0 {
			continue
		}
		if d.Stream != nil {
			r.registry.MarkSnapshotReceived(replayConnection, d.Stream.Channel, d.Stream.Symbol)
		}
		if d.Ended != nil {
			r.registry.Forget(replayConnection, d.Ended.Channel, d.Ended.Symbol)
		}
		kept = append(kept, d)
	}
	return exchange.GroupEvents(r.name, kept), nil
}

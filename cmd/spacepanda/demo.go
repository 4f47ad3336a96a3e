package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepanda-project/spacepanda/channel"
	"github.com/spacepanda-project/spacepanda/discovery"
	"github.com/spacepanda-project/spacepanda/identity"
	"github.com/spacepanda-project/spacepanda/network"
	"github.com/spacepanda-project/spacepanda/storage/memory"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a two-node walkthrough in-process: create a channel, invite, join, exchange one message",
	Long: `demo wires two in-process nodes (alice and bob) over the real
channel, mls, envelope, network and discovery packages with an
in-memory Transport standing in for a live connection. It exists to
exercise the library end to end from the command line, not to model a
production deployment.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// demoTransport fans frames out to whichever node's inbox matches the
// destination peer, standing in for network.Transport.
type demoTransport struct {
	mu      sync.Mutex
	inboxes map[discovery.PeerID]chan []byte
}

func newDemoTransport() *demoTransport {
	return &demoTransport{inboxes: make(map[discovery.PeerID]chan []byte)}
}

func (t *demoTransport) attach(peer discovery.PeerID) chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan []byte, 16)
	t.inboxes[peer] = ch
	return ch
}

func (t *demoTransport) Send(peer discovery.PeerID, frame []byte) error {
	t.mu.Lock()
	ch, ok := t.inboxes[peer]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("demo transport: unknown peer %q", peer)
	}
	ch <- frame
	return nil
}

type demoNode struct {
	userID string
	peer   discovery.PeerID
	mgr    *channel.Manager
	net    *network.Network
	inbox  chan []byte
}

func newDemoNode(transport *demoTransport, userID string) (*demoNode, error) {
	var deviceID [32]byte
	if _, err := rand.Read(deviceID[:]); err != nil {
		return nil, err
	}
	id, err := identity.New(userID, deviceID)
	if err != nil {
		return nil, err
	}

	peer := discovery.PeerID("peer-" + userID)
	net := network.New(transport)
	n := &demoNode{
		userID: userID,
		peer:   peer,
		net:    net,
		inbox:  transport.attach(peer),
	}
	n.mgr = channel.NewManager(id, memory.NewStore(), discovery.NewStaticDirectory(), net, userID)
	return n, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport := newDemoTransport()
	alice, err := newDemoNode(transport, "alice")
	if err != nil {
		return err
	}
	bob, err := newDemoNode(transport, "bob")
	if err != nil {
		return err
	}

	delivered := make(chan string, 1)
	go network.Listen(ctx, bob.inbox, 1, func(f network.Frame) error {
		switch f.Kind {
		case network.KindEncryptedMessage:
			plaintext, err := bob.mgr.ReceiveMessage(f.ChannelID, f.Body)
			if err != nil {
				return err
			}
			if plaintext != nil {
				delivered <- string(plaintext)
			}
			return nil
		case network.KindCommit:
			return bob.mgr.ProcessCommit(f.ChannelID, f.Body)
		default:
			return nil
		}
	})

	channelID, err := alice.mgr.CreateChannel(ctx, "general", false)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	alice.net.RegisterMember(channelID, alice.userID, alice.peer)
	fmt.Printf("alice created channel %s\n", channelID)

	bobKP, err := bob.mgr.GenerateKeyPackage(ctx)
	if err != nil {
		return fmt.Errorf("bob generate key package: %w", err)
	}

	invite, _, err := alice.mgr.CreateInvite(channelID, bobKP)
	if err != nil {
		return fmt.Errorf("alice create invite: %w", err)
	}
	alice.net.RegisterMember(channelID, bob.userID, bob.peer)
	fmt.Printf("alice invited bob (key package %s)\n", invite.KeyPackageID)

	if _, err := bob.mgr.JoinChannel(ctx, invite); err != nil {
		return fmt.Errorf("bob join channel: %w", err)
	}
	bob.net.RegisterMember(channelID, alice.userID, alice.peer)
	fmt.Println("bob joined the channel")

	if _, err := alice.mgr.SendMessage(channelID, []byte("hello bob")); err != nil {
		return fmt.Errorf("alice send message: %w", err)
	}

	select {
	case plaintext := <-delivered:
		fmt.Printf("bob received: %q\n", plaintext)
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for bob to receive the message")
	}

	role, err := alice.mgr.GetMemberRole(channelID, "bob")
	if err != nil {
		return err
	}
	fmt.Printf("bob's role is now %s\n", role)
	return nil
}

package corpus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-graph/graph"
	"github.com/dhcgn/mail-graph/header"
	"github.com/dhcgn/mail-graph/model"
)

const (
	imapUser     = "enron"
	imapPassword = "secret"
)

// startIMAPServer serves an in-memory mailbox store with an empty INBOX and
// an empty Archive folder on a loopback port.
func startIMAPServer(t *testing.T) int {
	t.Helper()

	memServer := imapmemserver.New()
	user := imapmemserver.NewUser(imapUser, imapPassword)
	require.NoError(t, user.Create("INBOX", nil))
	require.NoError(t, user.Create("Archive", nil))
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		Caps: imapv2.CapSet{
			imapv2.CapIMAP4rev1: {},
			imapv2.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = server.Close()
	})

	return ln.Addr().(*net.TCPAddr).Port
}

func dialTestServer(t *testing.T, port int) *imapclient.Client {
	t.Helper()
	client, err := imapclient.DialInsecure(fmt.Sprintf("127.0.0.1:%d", port), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Login(imapUser, imapPassword).Wait())
	return client
}

func appendMessages(t *testing.T, port int, folder string, messages ...string) {
	t.Helper()
	client := dialTestServer(t, port)
	for _, raw := range messages {
		cmd := client.Append(folder, int64(len(raw)), nil)
		_, err := cmd.Write([]byte(raw))
		require.NoError(t, err)
		require.NoError(t, cmd.Close())
		_, err = cmd.Wait()
		require.NoError(t, err)
	}
}

func fetchFlags(t *testing.T, port int, folder string) [][]imapv2.Flag {
	t.Helper()
	client := dialTestServer(t, port)
	selected, err := client.Select(folder, &imapv2.SelectOptions{ReadOnly: true}).Wait()
	require.NoError(t, err)

	var seqSet imapv2.SeqSet
	seqSet.AddRange(1, selected.NumMessages)
	msgs, err := client.Fetch(seqSet, &imapv2.FetchOptions{Flags: true}).Collect()
	require.NoError(t, err)

	flags := make([][]imapv2.Flag, len(msgs))
	for i, msg := range msgs {
		flags[i] = msg.Flags
	}
	return flags
}

func TestIMAP_Walk(t *testing.T) {
	first := "Message-ID: <1>\r\nFrom: kenneth.lay@enron.com\r\nTo: jeff.skilling@enron.com\r\nSubject: one\r\n\r\nbody\r\n"
	second := "Message-ID: <2>\r\nFrom: jeff.skilling@enron.com\r\nTo: 'kenneth.lay@enron.com', andrew.fastow@enron.com\r\nSubject: two\r\n\r\nbody\r\n"

	port := startIMAPServer(t)
	appendMessages(t, port, "INBOX", first, second)

	src, err := NewIMAP(IMAPOptions{
		Host:     "127.0.0.1",
		Port:     port,
		Username: imapUser,
		Password: imapPassword,
	}, nil)
	require.NoError(t, err)

	envs := collect(t, src)
	require.Len(t, envs, 2)

	assert.Equal(t, "imap://127.0.0.1/INBOX/1", envs[0].Document.Path)
	assert.Equal(t, "imap://127.0.0.1/INBOX/2", envs[1].Document.Path)
	assert.NoError(t, envs[0].Err)
	assert.NoError(t, envs[1].Err)
	assert.Equal(t, first, envs[0].Document.Text)
	assert.Equal(t, second, envs[1].Document.Text)

	msg, err := header.Extract(envs[1].Document.Text)
	require.NoError(t, err)
	assert.Equal(t, "<2>", msg.MessageID)
	assert.Equal(t, graph.Identity("jeff.skilling@enron.com"), msg.From)
	assert.Equal(t, []graph.Identity{"kenneth.lay@enron.com", "andrew.fastow@enron.com"}, msg.Recipients)

	for i, flags := range fetchFlags(t, port, "INBOX") {
		assert.NotContains(t, flags, imapv2.FlagSeen, "message %d was marked as read", i+1)
	}
}

func TestIMAP_WalkFolders(t *testing.T) {
	tests := []struct {
		name    string
		folder  string
		wantLen int
		wantErr string
	}{
		{name: "default folder is inbox", folder: "", wantLen: 1},
		{name: "empty folder", folder: "Archive", wantLen: 0},
		{name: "missing folder", folder: "Deleted", wantErr: "examine mailbox Deleted"},
	}

	port := startIMAPServer(t)
	appendMessages(t, port, "INBOX", "Message-ID: <1>\r\nFrom: a@x.com\r\nTo: b@x.com\r\n\r\nbody\r\n")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewIMAP(IMAPOptions{
				Host:     "127.0.0.1",
				Port:     port,
				Username: imapUser,
				Password: imapPassword,
				Folder:   tt.folder,
			}, nil)
			require.NoError(t, err)

			var envs int
			err = src.Walk(context.Background(), func(model.Envelope) error {
				envs++
				return nil
			})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, envs)
		})
	}
}

func TestIMAP_LoginFailure(t *testing.T) {
	port := startIMAPServer(t)

	src, err := NewIMAP(IMAPOptions{
		Host:     "127.0.0.1",
		Port:     port,
		Username: imapUser,
		Password: "wrong",
	}, nil)
	require.NoError(t, err)

	err = src.Walk(context.Background(), func(model.Envelope) error { return nil })
	assert.ErrorContains(t, err, "imap login failed")
}

func TestIMAP_CallbackErrorStopsWalk(t *testing.T) {
	port := startIMAPServer(t)
	appendMessages(t, port, "INBOX",
		"Message-ID: <1>\r\nFrom: a@x.com\r\nTo: b@x.com\r\n\r\nbody\r\n",
		"Message-ID: <2>\r\nFrom: a@x.com\r\nTo: c@x.com\r\n\r\nbody\r\n",
	)

	src, err := NewIMAP(IMAPOptions{
		Host:     "127.0.0.1",
		Port:     port,
		Username: imapUser,
		Password: imapPassword,
	}, nil)
	require.NoError(t, err)

	stop := errors.New("stop")
	var seen int
	err = src.Walk(context.Background(), func(model.Envelope) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultSSHPort    = "22"
	sshConnectTimeout = 10 * time.Second
)

var defaultKeyFiles = []string{
	".ssh/id_ed25519",
	".ssh/id_rsa",
	".ssh/id_ecdsa",
}

// SSHOptions control how SSH connections are established.
type SSHOptions struct {
	// User overrides the user part of the address. Empty means the address
	// user (user@host) or the current OS user.
	User string

	// InsecureHostKey skips known_hosts verification.
	InsecureHostKey bool
}

// SSHRunner runs commands over one SSH connection, opening a fresh session
// per command. File copies go through a lazily opened SFTP subsystem on the
// same connection.
type SSHRunner struct {
	addr   string
	client *ssh.Client

	sftpOnce sync.Once
	sftpErr  error
	sftp     *sftp.Client
}

// DialSSH connects to addr ("host", "host:port" or "user@host[:port]").
func DialSSH(ctx context.Context, addr string, opts *SSHOptions) (*SSHRunner, error) {
	if opts == nil {
		opts = &SSHOptions{}
	}

	user, host, port := splitAddr(addr)
	if opts.User != "" {
		user = opts.User
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	auth, err := authMethods()
	if err != nil {
		return nil, err
	}

	hostKey, err := hostKeyCallback(opts.InsecureHostKey)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         sshConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(netConn, net.JoinHostPort(host, port), cfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}

	return &SSHRunner{
		addr:   addr,
		client: ssh.NewClient(conn, chans, reqs),
	}, nil
}

func (r *SSHRunner) Run(ctx context.Context, cmd string) ([]byte, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session %s: %w", r.addr, err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.Output(cmd)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// closing the session unblocks Output
		session.Close()
		<-done
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("ssh exec %s: %w", r.addr, res.err)
		}
		return res.out, nil
	}
}

func (r *SSHRunner) Copy(ctx context.Context, destDir string, files []string) error {
	client, err := r.sftpClient()
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.copyOne(client, destDir, file); err != nil {
			return err
		}
	}
	return nil
}

func (r *SSHRunner) copyOne(client *sftp.Client, destDir, file string) error {
	src, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	destPath := path.Join(destDir, filepath.Base(file))
	dst, err := client.Create(destPath)
	if err != nil {
		return fmt.Errorf("sftp create %s:%s: %w", r.addr, destPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("sftp write %s:%s: %w", r.addr, destPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp close %s:%s: %w", r.addr, destPath, err)
	}

	// best effort permission carry-over
	_ = client.Chmod(destPath, info.Mode().Perm())
	return nil
}

func (r *SSHRunner) Close() error {
	if r.sftp != nil {
		r.sftp.Close()
	}
	return r.client.Close()
}

func (r *SSHRunner) sftpClient() (*sftp.Client, error) {
	r.sftpOnce.Do(func() {
		r.sftp, r.sftpErr = sftp.NewClient(r.client)
	})
	if r.sftpErr != nil {
		return nil, fmt.Errorf("sftp subsystem %s: %w", r.addr, r.sftpErr)
	}
	return r.sftp, nil
}

func splitAddr(addr string) (user, host, port string) {
	host = addr
	if at := strings.LastIndex(host, "@"); at >= 0 {
		user, host = host[:at], host[at+1:]
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		host, port = h, p
	} else {
		port = defaultSSHPort
	}
	return user, host, port
}

func authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return methods, nil
	}

	var signers []ssh.Signer
	for _, name := range defaultKeyFiles {
		pem, err := os.ReadFile(filepath.Join(home, name))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no usable ssh credentials (agent or %s)", strings.Join(defaultKeyFiles, ", "))
	}
	return methods, nil
}

func hostKeyCallback(insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}

package container

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// AgentManager launches managed worker-agent containers on registered nodes.
type AgentManager struct {
	image    string
	relayURL string
}

func NewAgentManager(image, relayURL string) *AgentManager {
	return &AgentManager{image: image, relayURL: relayURL}
}

// clientForNode creates a Docker client connected to a node's Docker API.
func clientForNode(node *Node) (*client.Client, error) {
	var opts []client.Opt
	opts = append(opts, client.WithHost(node.DockerAPIURL))
	opts = append(opts, client.WithAPIVersionNegotiation())

	if node.TLSCertPath != "" {
		httpClient, err := tlsHTTPClient(node.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("tls client: %w", err)
		}
		opts = append(opts, client.WithHTTPClient(httpClient))
	}

	return client.NewClientWithOpts(opts...)
}

// tlsHTTPClient creates an HTTP client with TLS certs for Docker API auth.
func tlsHTTPClient(certPath string) (*http.Client, error) {
	// In production, load TLS certs from certPath.
	// For dev, return default client.
	return http.DefaultClient, nil
}

// LaunchAgent creates and starts a worker-agent container on the given node.
// The agent receives the relay URL and its worker API key via env and dials
// back in on its own.
func (m *AgentManager) LaunchAgent(ctx context.Context, node *Node, workerID, apiKey string) (string, error) {
	cli, err := clientForNode(node)
	if err != nil {
		return "", fmt.Errorf("docker client: %w", err)
	}
	defer cli.Close()

	containerCfg := &container.Config{
		Image: m.image,
		Env: []string{
			"TERM=xterm-256color",
			"RELAY_URL=" + m.relayURL,
			"WORKER_API_KEY=" + apiKey,
		},
		Labels: map[string]string{
			"nexus.worker": workerID,
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{},
		Resources: container.Resources{
			Memory:   512 * 1024 * 1024, // 512MB
			NanoCPUs: 1_000_000_000,     // 1 CPU
		},
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}

	resp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "nexus-agent-"+workerID)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("container start: %w", err)
	}

	log.Printf("container: agent %s started on %s for worker %s", resp.ID[:12], node.Host, workerID)
	return resp.ID, nil
}

// StopAgent stops and removes an agent container on the given node.
func (m *AgentManager) StopAgent(ctx context.Context, node *Node, containerID string) error {
	cli, err := clientForNode(node)
	if err != nil {
		return fmt.Errorf("docker client: %w", err)
	}
	defer cli.Close()

	timeout := 10
	stopOpts := container.StopOptions{Timeout: &timeout}
	if err := cli.ContainerStop(ctx, containerID, stopOpts); err != nil {
		log.Printf("container: stop warning: %v", err)
	}

	if err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("container remove: %w", err)
	}

	return nil
}

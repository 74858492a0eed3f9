package container

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NodeStatus string

const (
	NodeActive   NodeStatus = "active"
	NodeDraining NodeStatus = "draining"
	NodeOffline  NodeStatus = "offline"
)

// Node is a host with a reachable Docker API where managed worker agents
// can be launched.
type Node struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Host         string     `gorm:"not null"`
	DockerAPIURL string     `gorm:"column:docker_api_url;not null"`
	TLSCertPath  string     `gorm:"column:tls_cert_path"`
	Capacity     int        `gorm:"not null;default:10"`
	ActiveAgents int        `gorm:"column:active_agents;not null;default:0"`
	Status       NodeStatus `gorm:"not null;default:'active'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (n *Node) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

type NodePool struct {
	db *gorm.DB
}

func NewNodePool(db *gorm.DB) *NodePool {
	return &NodePool{db: db}
}

// SelectNode picks the least-loaded active node with available capacity.
func (p *NodePool) SelectNode() (*Node, error) {
	var n Node
	err := p.db.Where("status = ? AND active_agents < capacity", NodeActive).
		Order("active_agents asc").
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *NodePool) FindByID(id uuid.UUID) (*Node, error) {
	var n Node
	err := p.db.First(&n, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *NodePool) IncrementAgents(nodeID uuid.UUID) error {
	return p.db.Model(&Node{}).Where("id = ?", nodeID).
		UpdateColumn("active_agents", gorm.Expr("active_agents + 1")).Error
}

func (p *NodePool) DecrementAgents(nodeID uuid.UUID) error {
	return p.db.Model(&Node{}).Where("id = ? AND active_agents > 0", nodeID).
		UpdateColumn("active_agents", gorm.Expr("active_agents - 1")).Error
}

func (p *NodePool) List() ([]Node, error) {
	var nodes []Node
	err := p.db.Order("host asc").Find(&nodes).Error
	return nodes, err
}

func (p *NodePool) Register(n *Node) error {
	return p.db.Create(n).Error
}

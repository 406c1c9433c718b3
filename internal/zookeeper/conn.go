// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"

	"bazaar/internal/pkg/logger"
)

// Conn 是对 zk.Conn 的薄封装，统一建连参数。
type Conn struct {
	*zk.Conn
}

// Connect 连接 ZooKeeper 集群。
func Connect(servers []string) (*Conn, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second, zk.WithLogInfo(false))
	if err != nil {
		return nil, err
	}
	logger.Logger.Info().Strs("servers", servers).Msg("connected to zookeeper")
	return &Conn{Conn: conn}, nil
}

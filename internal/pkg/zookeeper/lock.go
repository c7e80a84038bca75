// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// ErrLockHeld 表示锁已被其他节点持有。
var ErrLockHeld = errors.New("lock is held by another node")

// nodeCreator 是 ensurePath 需要的最小连接能力，*zk.Conn 直接满足。
type nodeCreator interface {
	Exists(path string) (bool, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
}

// ensurePath 确保一个持久节点存在。
// Exists 对不存在的节点返回 (false, nil)，必须看布尔值而不是错误值。
func ensurePath(conn nodeCreator, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check node %s: %w", path, err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("failed to create node %s: %w", path, err)
	}
	return nil
}

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     *Conn  // ZooKeeper连接
	path     string // 锁的路径，例如 /distributed_locks/promo-scheduler
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例
func NewDistributedLock(conn *Conn, resourceID string) *DistributedLock {
	// 确保根节点和锁的父节点存在
	// 在生产环境中，这个操作通常由初始化脚本完成
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensurePath(conn, p); err != nil {
			panic(fmt.Sprintf("Failed to prepare lock path: %v", err))
		}
	}

	return &DistributedLock{
		conn: conn,
		path: lockPath,
	}
}

// TryLock 非阻塞地尝试获取锁。拿不到就返回 ErrLockHeld，调用方自行决定跳过本轮。
// 调度器用它保证同一时刻只有一个副本在跑扫描。
func (l *DistributedLock) TryLock() error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	children, _, err := l.conn.Children(l.path)
	if err != nil {
		l.Unlock()
		return fmt.Errorf("failed to get children nodes: %w", err)
	}
	sort.Strings(children)

	myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
	if myNodeName == children[0] {
		return nil
	}

	// 不是最小节点，立即放弃
	l.Unlock()
	return ErrLockHeld
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

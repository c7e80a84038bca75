// internal/pkg/zookeeper/lock_test.go
package zookeeper

import (
	"testing"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCreator 模拟 zk 连接的 Exists/Create 语义：
// 不存在的节点返回 (false, nil)，而不是错误。
type fakeCreator struct {
	nodes     map[string]bool
	existsErr error
	createErr error
	created   []string
}

func newFakeCreator(existing ...string) *fakeCreator {
	nodes := make(map[string]bool)
	for _, p := range existing {
		nodes[p] = true
	}
	return &fakeCreator{nodes: nodes}
}

func (f *fakeCreator) Exists(path string) (bool, *zk.Stat, error) {
	if f.existsErr != nil {
		return false, nil, f.existsErr
	}
	return f.nodes[path], nil, nil
}

func (f *fakeCreator) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nodes[path] = true
	f.created = append(f.created, path)
	return path, nil
}

// 全新集群上节点不存在时必须创建，否则后续的临时顺序节点
// 会一直报 ErrNoNode，锁永远拿不到。
func TestEnsurePathCreatesMissingNode(t *testing.T) {
	conn := newFakeCreator()

	require.NoError(t, ensurePath(conn, lockRoot))
	assert.Equal(t, []string{lockRoot}, conn.created)
	assert.True(t, conn.nodes[lockRoot])
}

func TestEnsurePathSkipsExistingNode(t *testing.T) {
	conn := newFakeCreator(lockRoot)

	require.NoError(t, ensurePath(conn, lockRoot))
	assert.Empty(t, conn.created, "existing node must not be recreated")
}

func TestEnsurePathToleratesConcurrentCreate(t *testing.T) {
	conn := newFakeCreator()
	conn.createErr = zk.ErrNodeExists

	assert.NoError(t, ensurePath(conn, lockRoot), "losing the create race is not an error")
}

func TestEnsurePathReportsConnectionErrors(t *testing.T) {
	conn := newFakeCreator()
	conn.existsErr = zk.ErrNoServer

	assert.Error(t, ensurePath(conn, lockRoot))
}

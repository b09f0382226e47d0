package cache

// lruNode is a node of the intrusive doubly-linked recency list.
type lruNode[K comparable] struct {
	key        K
	prev, next *lruNode[K]
}

// lruList orders keys from most (head) to least (tail) recently used.
// It is not safe for concurrent use; shards guard it with their mutex.
type lruList[K comparable] struct {
	head, tail *lruNode[K]
	len        int
}

func newLRUList[K comparable]() *lruList[K] {
	return &lruList[K]{}
}

func (l *lruList[K]) Len() int { return l.len }

func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	n := &lruNode[K]{key: key}
	l.linkFront(n)
	l.len++
	return n
}

func (l *lruList[K]) linkFront(n *lruNode[K]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruList[K]) unlink(n *lruNode[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (l *lruList[K]) MoveToFront(n *lruNode[K]) {
	if l.head == n {
		return
	}
	l.unlink(n)
	l.linkFront(n)
}

func (l *lruList[K]) Remove(n *lruNode[K]) {
	l.unlink(n)
	l.len--
}

// RemoveOldest unlinks the tail and returns its key.
func (l *lruList[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	n := l.tail
	l.Remove(n)
	return n.key, true
}

func (l *lruList[K]) Clear() {
	l.head, l.tail, l.len = nil, nil, 0
}

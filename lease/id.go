package lease

import clientv3 "go.etcd.io/etcd/client/v3"

// ID is the public lease identifier. The server hands out a signed 64-bit
// id (clientv3.LeaseID); this cast to an unsigned 64-bit value is lossless
// for any id the server actually assigns (always positive), but it is a
// boundary worth keeping visible - code that logs both representations of
// the same lease will see different numbers if it is not careful.
type ID uint64

func idFromServer(raw clientv3.LeaseID) ID {
	return ID(raw)
}

func (id ID) toServer() clientv3.LeaseID {
	return clientv3.LeaseID(id)
}

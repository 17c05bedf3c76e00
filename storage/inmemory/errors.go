package inmemory

import "errors"

var errTxDone = errors.New("inmemory: transaction already finished")

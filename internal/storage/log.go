// © 2025 opening-explorer authors. MIT License.

package storage

import "go.uber.org/zap"

// badgerLogAdapter satisfies badger.Logger by forwarding to the shared
// *zap.Logger every other component in this module logs through, so
// storage-engine diagnostics show up in the same structured stream instead
// of going to badger's own stdlib-log default.
type badgerLogAdapter struct {
	l *zap.SugaredLogger
}

func newBadgerLogAdapter(l *zap.Logger) *badgerLogAdapter {
	return &badgerLogAdapter{l: l.Named("badger").Sugar()}
}

func (a *badgerLogAdapter) Errorf(format string, args ...interface{})   { a.l.Errorf(format, args...) }
func (a *badgerLogAdapter) Warningf(format string, args ...interface{}) { a.l.Warnf(format, args...) }
func (a *badgerLogAdapter) Infof(format string, args ...interface{})    { a.l.Infof(format, args...) }
func (a *badgerLogAdapter) Debugf(format string, args ...interface{})   { a.l.Debugf(format, args...) }

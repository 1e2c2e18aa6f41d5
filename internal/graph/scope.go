package graph

import "errors"

// scope owns native handles acquired during a build and releases them in
// reverse acquisition order.
type scope struct {
	releases []func() error
}

func (s *scope) add(release func() error) {
	s.releases = append(s.releases, release)
}

// release runs every release function once, last acquired first, and joins
// their errors. The scope is empty afterwards.
func (s *scope) release() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.releases) - 1; i >= 0; i-- {
		if err := s.releases[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.releases = nil
	return errors.Join(errs...)
}

// releaseOnError releases the scope if *err is non-nil. Use with defer.
func (s *scope) releaseOnError(err *error) {
	if *err == nil {
		return
	}
	if relErr := s.release(); relErr != nil {
		*err = errors.Join(*err, relErr)
	}
}

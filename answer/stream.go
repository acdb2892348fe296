// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package answer

// Stream is a lazy, restartable sequence of answers. Nothing is computed
// until the stream is consumed, and every consumption starts over from the
// beginning.
type Stream struct {
	gen func(yield func(Answer) bool)
}

// NewStream returns a stream backed by gen. gen must call yield for each
// answer in turn and stop as soon as yield returns false. It may be called
// once per consumption.
func NewStream(gen func(yield func(Answer) bool)) *Stream {
	return &Stream{gen: gen}
}

// FromSlice returns a stream over a fixed list of answers.
func FromSlice(answers []Answer) *Stream {
	return NewStream(func(yield func(Answer) bool) {
		for _, a := range answers {
			if !yield(a) {
				return
			}
		}
	})
}

// Empty returns a stream without answers.
func Empty() *Stream {
	return NewStream(func(func(Answer) bool) {})
}

// ForEach calls fn with each answer until fn returns false.
func (s *Stream) ForEach(fn func(Answer) bool) {
	s.gen(fn)
}

// Collect returns all of the stream's answers.
func (s *Stream) Collect() []Answer {
	var res []Answer
	s.ForEach(func(a Answer) bool {
		res = append(res, a)
		return true
	})
	return res
}

// Filter returns a stream holding the answers for which keep returns true.
func (s *Stream) Filter(keep func(Answer) bool) *Stream {
	return NewStream(func(yield func(Answer) bool) {
		s.gen(func(a Answer) bool {
			if !keep(a) {
				return true
			}
			return yield(a)
		})
	})
}

// Map returns a stream holding fn's result for each answer, skipping answers
// for which fn returns false.
func (s *Stream) Map(fn func(Answer) (Answer, bool)) *Stream {
	return NewStream(func(yield func(Answer) bool) {
		s.gen(func(a Answer) bool {
			mapped, ok := fn(a)
			if !ok {
				return true
			}
			return yield(mapped)
		})
	})
}

// Distinct returns a stream that skips answers equal to an earlier one.
func (s *Stream) Distinct() *Stream {
	return NewStream(func(yield func(Answer) bool) {
		seen := new(Set)
		s.gen(func(a Answer) bool {
			if !seen.Add(a) {
				return true
			}
			return yield(a)
		})
	})
}

// Limit returns a stream of at most n answers.
func (s *Stream) Limit(n int) *Stream {
	return NewStream(func(yield func(Answer) bool) {
		if n <= 0 {
			return
		}
		count := 0
		s.gen(func(a Answer) bool {
			count++
			return yield(a) && count < n
		})
	})
}

// Concat returns a stream of the answers of each stream in turn.
func Concat(streams ...*Stream) *Stream {
	return NewStream(func(yield func(Answer) bool) {
		for _, s := range streams {
			stopped := false
			s.gen(func(a Answer) bool {
				if !yield(a) {
					stopped = true
					return false
				}
				return true
			})
			if stopped {
				return
			}
		}
	})
}

// Iterator walks a stream one answer at a time.
type Iterator struct {
	src     *Stream
	loaded  bool
	answers []Answer
	pos     int
}

// Iterator returns a new iterator positioned before the stream's first
// answer. The stream is evaluated on the first call to Next.
func (s *Stream) Iterator() *Iterator {
	return &Iterator{src: s}
}

// Next returns the next answer, or false when the stream is exhausted.
func (it *Iterator) Next() (Answer, bool) {
	if !it.loaded {
		it.answers = it.src.Collect()
		it.loaded = true
	}
	if it.pos >= len(it.answers) {
		return Answer{}, false
	}
	a := it.answers[it.pos]
	it.pos++
	return a, true
}

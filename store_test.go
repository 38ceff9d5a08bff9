package dfn

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndLatest(t *testing.T) {
	s := NewStore()
	_, ok := s.Latest("file:///a.dfn")
	assert.False(t, ok)

	p := NewParser()
	first, _ := p.ParseDefinition("file:///a.dfn", "[A]\n{\n}")
	second, _ := p.ParseDefinition("file:///a.dfn", "[A]\n{\n}\n[B]")
	s.Append(first)
	s.Append(second)

	latest, ok := s.Latest("file:///a.dfn")
	require.True(t, ok)
	assert.Same(t, second, latest)

	h := s.History("file:///a.dfn")
	require.Len(t, h, 2)
	assert.Same(t, first, h[0])
	assert.Same(t, second, h[1])

	// History hands out a copy.
	h[0] = nil
	assert.Same(t, first, s.History("file:///a.dfn")[0])
}

func TestStore_HistoryLimit(t *testing.T) {
	s := NewStore(WithHistoryLimit(2))
	var defs []*Definition
	for i := 0; i < 5; i++ {
		def := &Definition{URI: "file:///a.dfn", Name: fmt.Sprint(i)}
		defs = append(defs, def)
		s.Append(def)
	}

	h := s.History("file:///a.dfn")
	require.Len(t, h, 2)
	assert.Same(t, defs[3], h[0])
	assert.Same(t, defs[4], h[1])
}

func TestStore_URIsAndForget(t *testing.T) {
	s := NewStore(WithHistoryLimit(0))
	s.Append(&Definition{URI: "file:///b.dfn"})
	s.Append(&Definition{URI: "file:///a.dfn"})
	s.Append(&Definition{URI: "file:///a.dfn"})

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"file:///a.dfn", "file:///b.dfn"}, s.URIs())

	s.Forget("file:///a.dfn")
	assert.Equal(t, []string{"file:///b.dfn"}, s.URIs())
	assert.Empty(t, s.History("file:///a.dfn"))
}

func TestStore_ConcurrentDistinctDocuments(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri := fmt.Sprintf("file:///doc%d.dfn", i)
			for j := 0; j < 10; j++ {
				def, _ := NewParser().ParseDefinition(uri, "[A]\n{\nfoo=1\n}")
				s.Append(def)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, s.Len())
	for _, uri := range s.URIs() {
		assert.Len(t, s.History(uri), 10)
	}
}

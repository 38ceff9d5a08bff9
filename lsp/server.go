package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/uox3/dfn"
	"github.com/uox3/dfn/internal/config"
)

// ServerName is reported to clients during initialization.
const ServerName = "dfnls"

var (
	// ErrExitWithoutShutdown is returned by Serve when the client sends exit
	// without a prior shutdown request.
	ErrExitWithoutShutdown = errors.New("exit received before shutdown")

	// ErrConnectionClosed is returned by Serve when the input stream ends
	// before an exit notification.
	ErrConnectionClosed = errors.New("connection closed")
)

// Server answers LSP requests for DFN documents. Messages are handled one at
// a time in arrival order, so changes to the same document are never
// processed concurrently.
type Server struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *dfn.Store
	parser  *dfn.Parser
	version string

	conn        *Conn
	docs        map[string]*Document
	initialized bool
	shutdown    bool
}

// NewServer creates a server that records every parse in store.
func NewServer(cfg *config.Config, logger zerolog.Logger, store *dfn.Store) *Server {
	return &Server{
		cfg:    cfg,
		log:    logger.With().Str("component", "lsp").Logger(),
		store:  store,
		parser: dfn.NewParser(cfg.ParserOptions()...),
		docs:   make(map[string]*Document),
	}
}

// WithVersion sets the version reported in serverInfo.
func (s *Server) WithVersion(v string) *Server {
	s.version = v
	return s
}

// Serve reads messages from r and writes replies to w until the client sends
// exit, the stream ends, or ctx is cancelled between messages.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.conn = NewConn(r, w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.conn.ReadMessage()
		if err != nil {
			var rerr *ResponseError
			if errors.As(err, &rerr) {
				s.log.Warn().Err(err).Msg("discarding malformed message")
				if err := s.conn.ReplyError(nil, rerr); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return ErrConnectionClosed
			}
			return fmt.Errorf("read: %w", err)
		}

		if msg.Method == MethodExit {
			s.log.Info().Bool("shutdown", s.shutdown).Msg("exit")
			if !s.shutdown {
				return ErrExitWithoutShutdown
			}
			return nil
		}

		if err := s.dispatch(msg); err != nil {
			return err
		}
	}
}

// dispatch handles one message. The returned error is only ever a write
// failure; handler errors are sent back to the client.
func (s *Server) dispatch(msg *Message) error {
	s.log.Debug().Str("method", msg.Method).Bool("notification", msg.IsNotification()).Msg("message")

	if msg.IsNotification() {
		if err := s.handleNotification(msg); err != nil {
			s.log.Warn().Err(err).Str("method", msg.Method).Msg("notification failed")
		}
		return nil
	}

	result, rerr := s.handleRequest(msg)
	if rerr != nil {
		s.log.Warn().Str("method", msg.Method).Int("code", rerr.Code).Msg(rerr.Message)
		return s.conn.ReplyError(msg.ID, rerr)
	}
	return s.conn.Reply(msg.ID, result)
}

func (s *Server) handleRequest(msg *Message) (any, *ResponseError) {
	if s.shutdown {
		return nil, &ResponseError{Code: CodeInvalidRequest, Message: "server is shutting down"}
	}
	if !s.initialized && msg.Method != MethodInitialize {
		return nil, &ResponseError{Code: CodeServerNotInitialized, Message: "server not initialized"}
	}

	switch msg.Method {
	case MethodInitialize:
		s.initialized = true
		s.log.Info().Msg("initialized")
		return InitializeResult{
			Capabilities: ServerCapabilities{
				TextDocumentSync:   TextDocumentSyncOptions{OpenClose: true, Change: SyncIncremental},
				CompletionProvider: CompletionOptions{ResolveProvider: false},
			},
			ServerInfo: ServerInfo{Name: ServerName, Version: s.version},
		}, nil

	case MethodShutdown:
		s.shutdown = true
		return nil, nil

	case MethodCompletion:
		var params CompletionParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		return s.completion(params), nil

	default:
		return nil, &ResponseError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method}
	}
}

func (s *Server) handleNotification(msg *Message) error {
	if !s.initialized {
		return nil
	}

	switch msg.Method {
	case MethodInitialized:
		return nil

	case MethodDidOpen:
		var params DidOpenTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return invalidParams(err)
		}
		doc := &Document{
			URI:     params.TextDocument.URI,
			Version: params.TextDocument.Version,
			Text:    params.TextDocument.Text,
		}
		s.docs[doc.URI] = doc
		return s.validate(doc)

	case MethodDidChange:
		var params DidChangeTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return invalidParams(err)
		}
		doc, ok := s.docs[params.TextDocument.URI]
		if !ok {
			return fmt.Errorf("change for unopened document %s", params.TextDocument.URI)
		}
		if err := doc.Apply(params.ContentChanges); err != nil {
			return fmt.Errorf("apply change to %s: %w", doc.URI, err)
		}
		doc.Version = params.TextDocument.Version
		return s.validate(doc)

	case MethodDidClose:
		var params DidCloseTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return invalidParams(err)
		}
		uri := params.TextDocument.URI
		delete(s.docs, uri)
		return s.conn.Notify(MethodPublishDiagnostics, PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []Diagnostic{},
		})

	default:
		// $/cancelRequest, $/setTrace and other optional notifications.
		return nil
	}
}

// validate parses doc, records the definition and publishes its diagnostics,
// replacing whatever the client showed before.
func (s *Server) validate(doc *Document) error {
	def, diags := s.parser.ParseDefinition(doc.URI, doc.Text)
	s.store.Append(def)

	s.log.Debug().
		Str("uri", doc.URI).
		Str("category", def.Category.String()).
		Int("sections", len(def.Sections)).
		Int("diagnostics", len(diags)).
		Msg("parsed")

	version := doc.Version
	return s.conn.Notify(MethodPublishDiagnostics, PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     &version,
		Diagnostics: toProtocol(diags, doc.LineCount()),
	})
}

// completion returns the configured keywords for any position of an open
// document.
func (s *Server) completion(params CompletionParams) []CompletionItem {
	items := []CompletionItem{}
	if _, ok := s.docs[params.TextDocument.URI]; !ok {
		return items
	}
	for _, c := range s.cfg.Completion {
		items = append(items, CompletionItem{
			Label:  c.Label,
			Kind:   CompletionItemKindKeyword,
			Detail: c.Detail,
		})
	}
	return items
}

// toProtocol converts diagnostics to their wire form. LSP positions are
// unsigned, so the end-of-file diagnostic is anchored at the start of the
// last line.
func toProtocol(diags []dfn.Diagnostic, lineCount int) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		line := d.Line
		if d.IsEOF() {
			line = lineCount - 1
		}
		out = append(out, Diagnostic{
			Range: Range{
				Start: Position{Line: line, Character: d.StartColumn},
				End:   Position{Line: line, Character: d.EndColumn},
			},
			Severity: int(d.Severity),
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}

func invalidParams(err error) *ResponseError {
	return &ResponseError{Code: CodeInvalidParams, Message: err.Error()}
}

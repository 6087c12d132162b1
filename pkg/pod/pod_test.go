package pod

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/theapemachine/mcp-pod/core"
	"github.com/theapemachine/mcp-pod/pkg/registry"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

// MockHandler records handler invocations
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
	called := m.Called(args)
	return called.Get(0).(*mcp.CallToolResult), called.Error(1)
}

func echoTool() core.Tool {
	return core.Tool{
		Name:        "echo",
		Description: "Echo the text back",
		Arguments: core.Arguments{
			"text": schema.String(schema.Description("Text to echo")),
		},
		Handler: func(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(args["text"].(string)), nil
		},
	}
}

func newPod(tools ...core.Tool) (*Pod, error) {
	return New(Options{
		Name:    "test-pod",
		Version: "0.0.1",
		Tools:   tools,
		Logger:  log.New(io.Discard),
	})
}

func TestNew(t *testing.T) {
	Convey("Given options with tools", t, func() {
		pod, err := newPod(echoTool())

		Convey("It should register them", func() {
			So(err, ShouldBeNil)
			So(pod.Registry().Has("echo"), ShouldBeTrue)
			So(pod.Server(), ShouldNotBeNil)
		})
	})

	Convey("Given options with a duplicate tool", t, func() {
		_, err := newPod(echoTool(), echoTool())

		Convey("It should fail with DuplicateTool", func() {
			So(errors.Is(err, registry.ErrDuplicateTool), ShouldBeTrue)
		})
	})
}

func TestCallTool(t *testing.T) {
	Convey("Given a pod with an echo tool and a mocked tool", t, func() {
		handler := new(MockHandler)
		handler.On("Handle", mock.Anything).Return(mcp.NewToolResultText("mocked"), nil)

		pod, err := newPod(echoTool(), core.Tool{Name: "mocked", Handler: handler.Handle})
		So(err, ShouldBeNil)

		Convey("Calling a registered tool should return its result", func() {
			result, err := pod.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
			So(err, ShouldBeNil)
			So(result, ShouldResemble, mcp.NewToolResultText("hi"))
		})

		Convey("Calling an unknown tool should fail without touching any handler", func() {
			_, err := pod.CallTool(context.Background(), "nope", nil)
			So(registry.KindOf(err), ShouldEqual, registry.KindToolNotFound)
			handler.AssertNotCalled(t, "Handle", mock.Anything)
		})

		Convey("Invalid arguments should fail with InvalidArgument", func() {
			_, err := pod.CallTool(context.Background(), "echo", map[string]any{"text": 3})
			So(registry.KindOf(err), ShouldEqual, registry.KindInvalidArgument)
		})

		Convey("A cancelled context should abort before the handler runs", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := pod.CallTool(ctx, "mocked", nil)
			So(registry.KindOf(err), ShouldEqual, registry.KindAbortedBeforeStart)
			handler.AssertNotCalled(t, "Handle", mock.Anything)
		})

		Convey("A context detached from its cancelled parent should still run", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			result, err := pod.CallTool(context.WithoutCancel(ctx), "mocked", nil)
			So(err, ShouldBeNil)
			So(result, ShouldResemble, mcp.NewToolResultText("mocked"))
		})

		Convey("The mocked handler should be called once per call", func() {
			_, err := pod.CallTool(context.Background(), "mocked", nil)
			So(err, ShouldBeNil)
			handler.AssertNumberOfCalls(t, "Handle", 1)
		})
	})
}

func TestRegisterTool(t *testing.T) {
	Convey("Given a running pod", t, func() {
		pod, err := newPod(echoTool())
		So(err, ShouldBeNil)

		Convey("Late tools should be callable and listed last", func() {
			late := echoTool()
			late.Name = "late"

			So(pod.RegisterTool(late), ShouldBeNil)

			tools := pod.ListTools()
			So(len(tools), ShouldEqual, 2)
			So(tools[0].Name, ShouldEqual, "echo")
			So(tools[1].Name, ShouldEqual, "late")

			_, err := pod.CallTool(context.Background(), "late", map[string]any{"text": "x"})
			So(err, ShouldBeNil)
		})

		Convey("Late duplicates should be rejected", func() {
			err := pod.RegisterTool(echoTool())
			So(registry.KindOf(err), ShouldEqual, registry.KindDuplicateTool)
		})
	})
}

// blockingTool holds every call until release is closed, ignoring aborts.
func blockingTool(started chan<- struct{}, release <-chan struct{}) core.Tool {
	return core.Tool{
		Name:        "block",
		Description: "Block until released",
		Handler: func(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
			started <- struct{}{}
			<-release

			return mcp.NewToolResultText("released"), nil
		},
	}
}

// session is a client connected to a pod over in-memory pipes.
type session struct {
	in    *io.PipeWriter
	lines chan string
	done  chan error
}

func connect(pod *Pod) *session {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	s := &session{
		in:    inW,
		lines: make(chan string, 4096),
		done:  make(chan error, 1),
	}

	go func() {
		s.done <- pod.Connect(context.Background(), inR, outW)
		outW.Close()
	}()

	go func() {
		scanner := bufio.NewScanner(outR)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		for scanner.Scan() {
			s.lines <- scanner.Text()
		}

		close(s.lines)
	}()

	return s
}

func (s *session) send(raw string) {
	_, _ = s.in.Write([]byte(raw + "\n"))
}

// await returns the decoded message answering id, skipping everything else.
func (s *session) await(id int) map[string]any {
	timeout := time.After(5 * time.Second)

	for {
		select {
		case line, ok := <-s.lines:
			So(ok, ShouldBeTrue)

			var message map[string]any
			So(json.Unmarshal([]byte(line), &message), ShouldBeNil)

			if message["id"] == float64(id) {
				return message
			}
		case <-timeout:
			So(fmt.Sprintf("no response to request %d", id), ShouldBeEmpty)
			return nil
		}
	}
}

func (s *session) shutdown(pod *Pod) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	So(pod.Shutdown(ctx), ShouldBeNil)

	select {
	case err := <-s.done:
		So(err, ShouldBeNil)
	case <-time.After(time.Second):
		So("Connect did not return", ShouldBeEmpty)
	}
}

func listedNames(message map[string]any) string {
	result, ok := message["result"].(map[string]any)
	So(ok, ShouldBeTrue)

	tools, ok := result["tools"].([]any)
	So(ok, ShouldBeTrue)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}

	return strings.Join(names, ",")
}

func TestHandleMessage(t *testing.T) {
	Convey("Given a pod with tools A to H", t, func() {
		var tools []core.Tool
		for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
			tool := echoTool()
			tool.Name = name
			tools = append(tools, tool)
		}

		pod, err := newPod(tools...)
		So(err, ShouldBeNil)

		send := func(raw string) mcp.JSONRPCMessage {
			return pod.HandleMessage(context.Background(), json.RawMessage(raw))
		}

		Convey("tools/list should always follow registration order", func() {
			for i := 0; i < 20; i++ {
				message, ok := send(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`).(mcp.JSONRPCResponse)
				So(ok, ShouldBeTrue)

				result, ok := message.Result.(mcp.ListToolsResult)
				So(ok, ShouldBeTrue)

				names := make([]string, 0, len(result.Tools))
				for _, tool := range result.Tools {
					names = append(names, tool.Name)
				}

				So(strings.Join(names, ""), ShouldEqual, "ABCDEFGH")
			}
		})

		Convey("tools/call should be routed through the registry", func() {
			message, ok := send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"A","arguments":{"text":"hi"}}}`).(mcp.JSONRPCResponse)
			So(ok, ShouldBeTrue)
			So(message.Result, ShouldResemble, mcp.NewToolResultText("hi"))
		})

		Convey("Unknown tools should carry the ToolNotFound code", func() {
			message, ok := send(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"Z"}}`).(mcp.JSONRPCError)
			So(ok, ShouldBeTrue)
			So(message.Error.Code, ShouldEqual, registry.CodeMethodNotFound)
			So(message.Error.Message, ShouldEqual, `tool "Z" not found`)
			So(message.Error.Data, ShouldResemble, map[string]any{"kind": "ToolNotFound", "tool": "Z"})
		})

		Convey("Validation failures should carry the InvalidArgument code", func() {
			message, ok := send(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"A","arguments":{}}}`).(mcp.JSONRPCError)
			So(ok, ShouldBeTrue)
			So(message.Error.Code, ShouldEqual, registry.CodeInvalidParams)
			So(message.Error.Data.(map[string]any)["argument"], ShouldEqual, "text")
		})

		Convey("Other methods should be answered by the MCP server", func() {
			_, ok := send(`{"jsonrpc":"2.0","id":5,"method":"ping"}`).(mcp.JSONRPCResponse)
			So(ok, ShouldBeTrue)
		})

		Convey("Notifications should produce no response", func() {
			So(send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), ShouldBeNil)
		})
	})
}

func TestLifecycle(t *testing.T) {
	Convey("Given a pod connected to piped stdio", t, func() {
		pod, err := newPod(echoTool())
		So(err, ShouldBeNil)

		s := connect(pod)
		s.send(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		So(s.await(1), ShouldContainKey, "result")

		Convey("Shutdown should close the transport and end Connect cleanly", func() {
			s.shutdown(pod)

			Convey("A second shutdown should be a no-op", func() {
				So(pod.Shutdown(context.Background()), ShouldBeNil)
			})

			Convey("The pod should refuse to reconnect", func() {
				So(pod.Connect(context.Background(), strings.NewReader(""), io.Discard), ShouldEqual, ErrClosed)
			})

			Convey("Programmatic calls should keep working", func() {
				_, err := pod.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
				So(err, ShouldBeNil)
			})
		})

		Convey("A second Connect while serving should be refused", func() {
			So(pod.Connect(context.Background(), strings.NewReader(""), io.Discard), ShouldEqual, ErrConnected)
			s.shutdown(pod)
		})

		Convey("Malformed lines should get a parse error without ending the session", func() {
			s.send(`{not json`)
			s.send(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
			So(s.await(2), ShouldContainKey, "result")
			s.shutdown(pod)
		})
	})

	Convey("Given a pod whose input ends", t, func() {
		pod, err := newPod(echoTool())
		So(err, ShouldBeNil)

		Convey("Connect should return nil", func() {
			So(pod.Connect(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), io.Discard), ShouldBeNil)
		})

		Convey("Cancelling the context should end Connect with nil", func() {
			inR, _ := io.Pipe()
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(20*time.Millisecond, cancel)

			So(pod.Connect(ctx, inR, io.Discard), ShouldBeNil)
		})
	})
}

func TestTransportListing(t *testing.T) {
	Convey("Given a connected pod", t, func() {
		pod, err := newPod(echoTool())
		So(err, ShouldBeNil)

		s := connect(pod)

		Convey("Tools registered while serving should be listed in order", func() {
			requests := 200

			go func() {
				for i := 0; i < requests; i++ {
					s.send(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/list"}`, 100+i))
				}
			}()

			for i := 0; i < 100; i++ {
				tool := echoTool()
				tool.Name = fmt.Sprintf("late-%03d", i)
				So(pod.RegisterTool(tool), ShouldBeNil)
			}

			s.await(100 + requests - 1)

			s.send(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
			names := strings.Split(listedNames(s.await(1)), ",")

			So(len(names), ShouldEqual, 101)
			So(names[0], ShouldEqual, "echo")
			So(names[1], ShouldEqual, "late-000")
			So(names[100], ShouldEqual, "late-099")

			s.shutdown(pod)
		})

		Convey("A tool registered while serving should be announced", func() {
			tool := echoTool()
			tool.Name = "late"
			So(pod.RegisterTool(tool), ShouldBeNil)

			select {
			case line := <-s.lines:
				So(line, ShouldContainSubstring, `"method":"notifications/tools/list_changed"`)
			case <-time.After(5 * time.Second):
				So("no list_changed notification", ShouldBeEmpty)
			}

			s.shutdown(pod)
		})
	})
}

func TestInFlightCalls(t *testing.T) {
	Convey("Given a connected pod with a blocking tool", t, func() {
		started := make(chan struct{}, 1)
		release := make(chan struct{})
		defer close(release)

		pod, err := newPod(blockingTool(started, release))
		So(err, ShouldBeNil)

		s := connect(pod)
		s.send(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"block"}}`)

		select {
		case <-started:
		case <-time.After(5 * time.Second):
			So("the tool never started", ShouldBeEmpty)
		}

		Convey("Other requests should be answered while the call runs", func() {
			s.send(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
			So(s.await(2), ShouldContainKey, "result")
			s.shutdown(pod)
		})

		Convey("Shutdown should succeed without waiting for the call", func() {
			s.shutdown(pod)
		})

		Convey("A cancellation notification should abort the call", func() {
			s.send(`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1,"reason":"user hit stop"}}`)

			message := s.await(1)
			rpcErr, ok := message["error"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(rpcErr["code"], ShouldEqual, float64(registry.CodeRequestCancelled))
			So(rpcErr["message"], ShouldEqual, `tool "block" execution was aborted: user hit stop`)

			s.shutdown(pod)
		})
	})
}

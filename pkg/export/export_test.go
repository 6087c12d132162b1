package export

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mcp-pod/core"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

func searchTool() core.Tool {
	return core.Tool{
		Name:        "search",
		Description: "Search the index",
		Arguments: core.Arguments{
			"query": schema.String(schema.Description("What to look for")),
			"limit": schema.Integer(schema.Optional(), schema.Description("Maximum hits")),
		},
		Handler: func(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		},
	}
}

func TestParameters(t *testing.T) {
	Convey("Given a tool with required and optional arguments", t, func() {
		params := Parameters(searchTool())

		Convey("It should describe every argument", func() {
			properties, ok := params["properties"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(properties, ShouldContainKey, "query")
			So(properties, ShouldContainKey, "limit")
		})

		Convey("It should list only required arguments", func() {
			So(params["required"], ShouldResemble, []string{"query"})
		})
	})
}

func TestOpenAI(t *testing.T) {
	Convey("Given a tool", t, func() {
		tool := OpenAI(searchTool())

		Convey("It should be in OpenAI function calling format", func() {
			So(tool.Type.Value, ShouldEqual, openai.ChatCompletionToolTypeFunction)
			So(tool.Function.Value.Name.Value, ShouldEqual, "search")
			So(tool.Function.Value.Description.Value, ShouldEqual, "Search the index")

			params := tool.Function.Value.Parameters.Value
			_, hasProperties := params["properties"]
			_, hasRequired := params["required"]

			So(hasProperties, ShouldBeTrue)
			So(hasRequired, ShouldBeTrue)
		})

		Convey("Converting a slice should keep its order", func() {
			second := searchTool()
			second.Name = "second"

			tools := OpenAITools([]core.Tool{searchTool(), second})
			So(len(tools), ShouldEqual, 2)
			So(tools[1].Function.Value.Name.Value, ShouldEqual, "second")
		})
	})
}

func TestAnthropic(t *testing.T) {
	Convey("Given a tool", t, func() {
		tool, err := Anthropic(searchTool())

		Convey("It should carry name, description and schema", func() {
			So(err, ShouldBeNil)
			So(tool.Name.Value, ShouldEqual, "search")
			So(tool.Description.Value, ShouldEqual, "Search the index")

			inputSchema, ok := tool.InputSchema.Value.(map[string]interface{})
			So(ok, ShouldBeTrue)
			So(inputSchema["type"], ShouldEqual, "object")
			So(inputSchema["required"], ShouldResemble, []interface{}{"query"})
		})

		Convey("Converting a slice should convert every tool", func() {
			tools, err := AnthropicTools([]core.Tool{searchTool()})
			So(err, ShouldBeNil)
			So(len(tools), ShouldEqual, 1)
		})
	})
}

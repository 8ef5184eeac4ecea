package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
)

var (
	errCalcFormat  = errors.New("invalid input format, use 'operation num1 num2'")
	errCalcNumbers = errors.New("numbers must be valid numeric values")
	errCalcDivZero = errors.New("cannot divide by zero")
	errCalcRange   = errors.New("result is out of range")
)

type calculatorTool struct {
	ctx Context
}

// Calculation is the calculator result payload.
type Calculation struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Text       string  `json:"text"`
}

func (t *calculatorTool) name() string {
	return CalculatorToolName
}

func (t *calculatorTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name: CalculatorToolName,
			Description: openai.String("Perform a basic arithmetic operation (add, subtract, multiply, divide). " +
				"Use this for any calculation whenever possible."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "Expression in the form 'operation num1 num2', e.g. 'add 5 3' or 'divide 10 4'.",
					},
				},
				"required": []string{"input"},
			},
		},
	}
}

func (t *calculatorTool) execute(argText string) (string, error) {
	var args struct {
		Input string `json:"input"`
	}
	if err := decodeArgs(argText, &args); err != nil {
		t.ctx.debugf("[verbose] calculator: failed to parse arguments: %v", err)
		return marshalToolResponse(CalculatorToolName, nil, err)
	}
	t.ctx.debugf("[verbose] calculator: input=%q", args.Input)

	res, err := Calculate(args.Input)
	if err != nil {
		return marshalToolResponse(CalculatorToolName, nil, err)
	}
	return marshalToolResponse(CalculatorToolName, res, nil)
}

// Calculate evaluates "operation num1 num2".
func Calculate(input string) (Calculation, error) {
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) != 3 {
		return Calculation{}, errCalcFormat
	}
	op := parts[0]

	a, errA := strconv.ParseFloat(parts[1], 64)
	b, errB := strconv.ParseFloat(parts[2], 64)
	if errA != nil || errB != nil || !finite(a) || !finite(b) {
		return Calculation{}, errCalcNumbers
	}

	var result float64
	switch op {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return Calculation{}, errCalcDivZero
		}
		result = a / b
	default:
		return Calculation{}, fmt.Errorf("unsupported operation '%s'; supported operations are add, subtract, multiply, divide", op)
	}

	if !finite(result) {
		return Calculation{}, errCalcRange
	}
	return Calculation{
		Expression: strings.Join(parts, " "),
		Result:     result,
		Text:       strconv.FormatFloat(result, 'f', -1, 64),
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

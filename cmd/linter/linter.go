package main

import (
	"go/ast"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/singlechecker"
)

// Analyzer находит вызовы, мгновенно завершающие процесс, вне функции main
// пакета main: panic, os.Exit, log.Fatal* и Fatal-методы zap.SugaredLogger.
// Движок телеметрии живет в долгоживущем процессе, и такой вызов в
// обработчике или цикле обслуживания роняет весь сервер.
var Analyzer = &analysis.Analyzer{
	Name: "fatalcheck",
	Doc:  "проверяет использование panic, os.Exit, log.Fatal и zap Fatal-методов вне main пакета main",
	Run:  run,
}

func main() {
	singlechecker.Main(Analyzer)
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			if ident, ok := call.Fun.(*ast.Ident); ok {
				if ident.Name == "panic" && !isInMainFunc(pass, call) {
					pass.Reportf(call.Pos(), "использование встроенной функции panic")
				}
				return true
			}

			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			funcName := sel.Sel.Name

			if isZapFatalCall(pass, sel) {
				if !isInMainFunc(pass, call) {
					pass.Reportf(call.Pos(),
						"вызов zap-метода %s вне функции main пакета main", funcName)
				}
				return true
			}

			x, ok := sel.X.(*ast.Ident)
			if !ok {
				return true
			}

			pkgName := x.Name

			if (pkgName == "log" && isFatalFunc(funcName)) ||
				(pkgName == "os" && funcName == "Exit") {
				if !isInMainFunc(pass, call) {
					pass.Reportf(call.Pos(),
						"вызов %s.%s вне функции main пакета main",
						pkgName, funcName)
				}
			}

			return true
		})
	}

	return nil, nil
}

func isFatalFunc(name string) bool {
	return name == "Fatal" || name == "Fatalf" || name == "Fatalln"
}

// isZapFatalCall определяет по информации о типах, является ли выражение
// вызовом Fatal-метода zap-логгера.
func isZapFatalCall(pass *analysis.Pass, sel *ast.SelectorExpr) bool {
	name := sel.Sel.Name
	if name != "Fatal" && name != "Fatalf" && name != "Fatalw" && name != "Fatalln" {
		return false
	}

	tv, ok := pass.TypesInfo.Types[sel.X]
	if !ok || tv.Type == nil {
		return false
	}

	typeName := tv.Type.String()
	return strings.Contains(typeName, "go.uber.org/zap.SugaredLogger") ||
		strings.Contains(typeName, "go.uber.org/zap.Logger")
}

// isInMainFunc проверяет, находится ли вызов внутри функции main пакета main
func isInMainFunc(pass *analysis.Pass, call *ast.CallExpr) bool {
	if pass.Pkg.Name() != "main" {
		return false
	}

	for _, file := range pass.Files {
		var inMain bool
		ast.Inspect(file, func(n ast.Node) bool {
			funcDecl, ok := n.(*ast.FuncDecl)
			if !ok {
				return true
			}

			if funcDecl.Name.Name == "main" && funcDecl.Recv == nil {
				if funcDecl.Pos() <= call.Pos() && call.End() <= funcDecl.End() {
					inMain = true
					return false
				}
			}
			return true
		})
		if inMain {
			return true
		}
	}

	return false
}

package engine

import logx "cmdsched/pkg/logx"

func logxNop() logx.Logger { return logx.Nop() }

// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package staging 把 artifact 的存储路径解析为分析引擎实际读取的文件。

只含一个文件的 zip 归档会被解压到归档旁边，返回解压后的路径；
不是 zip 的文件原样返回。空归档或包含多个文件的归档以 ARCHIVE_ERROR 失败，
目录条目不计入。解压结果可重复使用，同一 artifact 多次 Stage 不会报错。

归档条目支持 Deflate 和 zstd 压缩方法。
*/
package staging
